package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/autohaus-heidelberg/website/internal/formatter"
	"github.com/autohaus-heidelberg/website/internal/listing"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/autohaus-heidelberg/website/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ListingUpcoming prints events from today onward, soonest first.
func (r *Runner) ListingUpcoming(ctx context.Context, cmd *cli.Command) error {
	upcoming, _, err := r.splitListing(ctx)
	if err != nil {
		return err
	}
	return r.printListing("Upcoming", upcoming, cmd)
}

// ListingPast prints past events, most recent first.
func (r *Runner) ListingPast(ctx context.Context, cmd *cli.Command) error {
	_, past, err := r.splitListing(ctx)
	if err != nil {
		return err
	}
	return r.printListing("Past", past, cmd)
}

// ListingShow prints one event found by id or listing key.
func (r *Runner) ListingShow(ctx context.Context, cmd *cli.Command) error {
	event, err := r.findListed(ctx, cmd.StringArg("key"))
	if err != nil {
		return err
	}

	if cmd.Bool("markdown") {
		md, err := formatter.ExportToMarkdown(*event, event.PosterURL())
		if err != nil {
			return err
		}
		_, err = r.output.Write(md)
		return err
	}
	return r.printEvent(*event, cmd.Bool("json"), cmd.Bool("pretty"))
}

// ListingExport writes the listing to per-event files with a manifest.
func (r *Runner) ListingExport(ctx context.Context, cmd *cli.Command) error {
	events, err := r.listingSource().Events(ctx)
	if err != nil {
		return err
	}

	upcoming, past := listing.Split(events, time.Now())
	switch when := cmd.String("when"); when {
	case "all":
	case "upcoming":
		events = upcoming
	case "past":
		events = past
	default:
		return fmt.Errorf("%w: --when must be all, upcoming or past, got %q", shared.ErrInvalidArgument, when)
	}

	format := cmd.String("format")
	switch format {
	case "json", "csv", "markdown", "txt":
	default:
		return fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, format)
	}

	if path := cmd.String("csv"); path != "" {
		data, err := formatter.ExportToCSV(events)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		r.writePlain("✓ Wrote %d events to %s\n", len(events), path)
	}

	r.writePlain("Exporting %d events as %s...\n", len(events), format)

	prog, wait := r.followProgress()
	result, err := r.engine().ExportEvents(ctx, prog, events, tasks.ExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  float64(cmd.Int("rate")),
		Posters:    cmd.Bool("posters"),
	})
	wait()

	if result != nil {
		r.writePlainln("")
		r.writePlainHeader("Export Complete")
		r.writePlain("Directory: %s\n", result.OutputDirectory)
		r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalEvents)
		if result.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", result.ManifestPath)
		}
		for _, res := range result.Results {
			switch {
			case res.Error != nil:
				r.writePlain("  ✗ %s: %v\n", res.Title, res.Error)
			case res.Warning != nil:
				r.writePlain("  ⚠ %s: %v\n", res.Title, res.Warning)
			}
		}
	}
	return err
}

// ListingPull fetches every event from the backend into the static events file.
func (r *Runner) ListingPull(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.config.Listing.EventsPath
	}

	events, err := r.events.GetAll(ctx)
	if err != nil {
		return err
	}
	if err := listing.WriteFile(path, events); err != nil {
		return err
	}

	r.logger.Info("events file written", "path", path, "events", len(events))
	return r.writePlain("✓ Wrote %d events to %s\n", len(events), path)
}

// ListingOpen opens the event's ticket shop.
func (r *Runner) ListingOpen(ctx context.Context, cmd *cli.Command) error {
	event, err := r.findListed(ctx, cmd.StringArg("key"))
	if err != nil {
		return err
	}
	if event.ShopLink == "" {
		return fmt.Errorf("%w: %s has no ticket shop", shared.ErrInvalidArgument, event.Title)
	}

	r.writePlain("Opening %s\n", event.ShopLink)
	return shared.OpenBrowser(event.ShopLink)
}

func (r *Runner) splitListing(ctx context.Context) (upcoming, past []models.Event, err error) {
	events, err := r.listingSource().Events(ctx)
	if err != nil {
		return nil, nil, err
	}
	upcoming, past = listing.Split(events, time.Now())
	return upcoming, past, nil
}

func (r *Runner) findListed(ctx context.Context, key string) (*models.Event, error) {
	events, err := r.listingSource().Events(ctx)
	if err != nil {
		return nil, err
	}
	return listing.Find(events, key)
}

func (r *Runner) printListing(title string, events []models.Event, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(events, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s events (%d)", title, len(events)))
	_, err := r.output.Write(formatter.ListingToText(events))
	return err
}
