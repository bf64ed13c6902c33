package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autohaus-heidelberg/website/internal/formatter"
	"github.com/autohaus-heidelberg/website/internal/media"
	"github.com/autohaus-heidelberg/website/internal/models"
	"golang.org/x/time/rate"
)

// ExportOpts contains configuration for bulk event exports.
type ExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: events_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5)
	RateLimit  float64 // Poster downloads per second (default: 5)
	Posters    bool    // Download posters for markdown exports
}

// EventExportResult is the outcome of exporting one event.
type EventExportResult struct {
	EventID string
	Title   string
	Success bool
	Files   []string
	Warning error // non-fatal problem, such as a failed poster download
	Error   error
}

// ExportResult summarizes a bulk export.
type ExportResult struct {
	TotalEvents       int
	SuccessfulExports int
	FailedExports     int
	Results           []EventExportResult
	OutputDirectory   string
	ManifestPath      string
}

// ExportEvents exports events concurrently with rate-limited poster downloads and progress tracking.
//
// This method implements a worker pool pattern. Failures of single events are recorded in the result
// and the manifest; only setup and manifest errors are returned.
func (e *Engine) ExportEvents(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	events []models.Event,
	opts ExportOpts,
) (*ExportResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("events_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Format == "" {
		opts.Format = "json"
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		TotalEvents:     len(events),
		OutputDirectory: opts.OutputDir,
		Results:         make([]EventExportResult, 0, len(events)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan models.Event, len(events))
	results := make(chan EventExportResult, len(events))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, event := range events {
			select {
			case <-ctx.Done():
				return
			case jobs <- event:
			}
			sendProgress(prog, exportingEventUpdate(i+1, len(events), event.Title))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(events), res.Title, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(events), res.Title, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	sendProgress(prog, writeManifestUpdate(manifestPath))
	if err := formatter.WriteManifest(buildManifest(result, opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted after %d of %d events: %w", completed, len(events), err)
	}
	return result, nil
}

// exportWorker is a worker goroutine that exports events from the jobs channel.
func (e *Engine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan models.Event,
	results chan<- EventExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for event := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.exportSingleEvent(ctx, limiter, event, opts)
	}
}

// exportSingleEvent exports one event to the requested format.
func (e *Engine) exportSingleEvent(ctx context.Context, limiter *rate.Limiter, event models.Event, opts ExportOpts) EventExportResult {
	result := EventExportResult{
		EventID: event.ID,
		Title:   event.Title,
		Files:   []string{},
	}

	name := exportName(event)
	switch opts.Format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(event, filepath.Join(opts.OutputDir, name))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.ArtistsFile, csvRes.MetadataFile}

	case "markdown":
		var imageURL string
		if opts.Posters && event.PosterURL() != "" {
			if err := limiter.Wait(ctx); err == nil {
				imageURL = event.PosterURL()
			}
		}

		mdRes, err := formatter.WriteMarkdownExport(ctx, event, filepath.Join(opts.OutputDir, name), imageURL)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		if mdRes.Warning != nil {
			e.logger.Warn("poster not exported", "event", event.ID, "error", mdRes.Warning)
			result.Warning = mdRes.Warning
		}
		result.Files = mdRes.Files

	case "txt":
		path, err := formatter.WriteTextExport(event, filepath.Join(opts.OutputDir, name+".txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	case "json":
		fallthrough
	default:
		path, err := formatter.WriteJSONExport(event, filepath.Join(opts.OutputDir, name+".json"))
		if err != nil {
			result.Error = err
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}

// exportName is the file base name of an event. Events without an id use their listing key.
func exportName(event models.Event) string {
	if event.ID != "" {
		return filepath.Base(filepath.Clean("/" + event.ID))
	}
	return "event_" + media.EventHash(event.Date, event.Title)
}

func buildManifest(r *ExportResult, format string) formatter.Manifest {
	m := formatter.Manifest{
		Format:     format,
		ExportedAt: time.Now().UTC(),
		Total:      r.TotalEvents,
		Successful: r.SuccessfulExports,
		Failed:     r.FailedExports,
		Events:     make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{EventID: res.EventID, Title: res.Title, Files: res.Files, Status: "success"}
		if !res.Success {
			entry.Status = "failed"
			if res.Error != nil {
				entry.Error = res.Error.Error()
			}
		}
		m.Events = append(m.Events, entry)
	}
	return m
}
