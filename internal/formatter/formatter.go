// package formatter renders events and stream logs as CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/autohaus-heidelberg/website/internal/media"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/autohaus-heidelberg/website/internal/stream"
)

const maxImageBytes = 20 << 20

// ExportToCSV renders a listing with columns: Key, ID, Date, Title, Fee, FeeAk, ShopLink, Artists
func ExportToCSV(events []models.Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Key", "ID", "Date", "Title", "Fee", "FeeAk", "ShopLink", "Artists"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range events {
		record := []string{
			media.EventHash(e.Date, e.Title),
			e.ID,
			e.Date,
			e.Title,
			e.Fee,
			e.FeeAk,
			e.ShopLink,
			strings.Join(artistNames(e), "; "),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ArtistsToCSV renders the lineup of one event with columns: Name, Link, YouTube, SoundCloud, Bandcamp
func ArtistsToCSV(event models.Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Name", "Link", "YouTube", "SoundCloud", "Bandcamp"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, a := range event.Artists {
		if err := writer.Write([]string{a.Name, a.Link, a.YouTube, a.SoundCloud, a.Bandcamp}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders an event page with an optional poster image.
//
// Artist media links are normalized to player URLs; links that cannot be embedded are listed as-is.
func ExportToMarkdown(event models.Event, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", event.Title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Poster](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Date**: %s\n", displayDate(event))
	if event.Fee != "" {
		fmt.Fprintf(&buf, "**Fee**: %s\n", event.Fee)
	}
	if event.FeeAk != "" {
		fmt.Fprintf(&buf, "**Fee (AK)**: %s\n", event.FeeAk)
	}
	if event.ShopLink != "" {
		fmt.Fprintf(&buf, "**Tickets**: %s\n", event.ShopLink)
	}
	buf.WriteString("\n")

	if event.DescriptionShort != "" {
		fmt.Fprintf(&buf, "%s\n\n", event.DescriptionShort)
	}
	if event.DescriptionLong != "" {
		fmt.Fprintf(&buf, "%s\n\n", event.DescriptionLong)
	}

	if len(event.Artists) > 0 {
		buf.WriteString("## Artists\n\n")
	}
	for _, a := range event.Artists {
		fmt.Fprintf(&buf, "### %s\n\n", a.Name)
		if a.Description != "" {
			fmt.Fprintf(&buf, "%s\n\n", a.Description)
		}
		if a.Link != "" {
			fmt.Fprintf(&buf, "- Link: %s\n", a.Link)
		}
		for _, raw := range []string{a.YouTube, a.SoundCloud, a.Bandcamp} {
			if raw == "" {
				continue
			}
			embed, err := media.Embed(raw)
			if err != nil {
				embed = raw
			}
			fmt.Fprintf(&buf, "- %s: %s\n", media.Detect(raw), embed)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders an event as plain text
func ExportToText(event models.Event) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Event: %s\n", event.Title)
	fmt.Fprintf(&buf, "Date: %s\n", displayDate(event))
	if event.Fee != "" {
		fmt.Fprintf(&buf, "Fee: %s\n", event.Fee)
	}
	fmt.Fprintf(&buf, "Artists: %d\n\n", len(event.Artists))

	for i, a := range event.Artists {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, a.Name)
	}

	return buf.Bytes(), nil
}

// ListingToText renders one line per event: date, key and title.
func ListingToText(events []models.Event) []byte {
	var buf bytes.Buffer
	for _, e := range events {
		fmt.Fprintf(&buf, "%-16s  %-11s  %s\n", displayDate(e), media.EventHash(e.Date, e.Title), e.Title)
	}
	return buf.Bytes()
}

// LogsToText renders stream log entries as "[HH:MM:SS] event: message" lines.
func LogsToText(entries []stream.LogEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		writeLogLine(&buf, e.Timestamp, e.Event, e.Message)
	}
	return buf.Bytes()
}

// RunLogToText renders a persisted stream run log.
func RunLogToText(entries []models.RunLogEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		writeLogLine(&buf, e.ReceivedAt.Local().Format("15:04:05"), e.Event, e.Message)
	}
	return buf.Bytes()
}

func writeLogLine(w io.Writer, ts, event, message string) {
	if message == "" {
		fmt.Fprintf(w, "[%s] %s\n", ts, event)
		return
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", ts, event, message)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// EventMetadata is the summary of an event written next to exports.
type EventMetadata struct {
	Key      string   `json:"key"`
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Title    string   `json:"title"`
	Fee      string   `json:"fee,omitempty"`
	ShopLink string   `json:"shop_link,omitempty"`
	Poster   string   `json:"poster,omitempty"`
	Artists  []string `json:"artists"`
}

// ToMetadataJSON generates a JSON representation of event metadata (without descriptions)
func ToMetadataJSON(event models.Event) ([]byte, error) {
	return shared.MarshalJSON(EventMetadata{
		Key:      media.EventHash(event.Date, event.Title),
		ID:       event.ID,
		Date:     event.Date,
		Title:    event.Title,
		Fee:      event.Fee,
		ShopLink: event.ShopLink,
		Poster:   event.PosterURL(),
		Artists:  artistNames(event),
	}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ArtistsFile  string
	MetadataFile string
}

// WriteCSVExport writes an event's lineup as CSV with accompanying metadata JSON.
//
// Defaults to the event ID as the base filename & creates {base}_artists.csv and {base}_metadata.json
func WriteCSVExport(event models.Event, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = event.ID
	}

	csvData, err := ArtistsToCSV(event)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	artistsFile := baseFilepath + "_artists.csv"
	if err := os.WriteFile(artistsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(event)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ArtistsFile:  artistsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Poster    string
	Warning   error // poster download failure; the page is still written
}

// WriteMarkdownExport writes an event page into a dedicated directory.
//
// Directory name defaults to the event ID. When imageURL is set the poster is downloaded next to the page;
// a failed download is reported in the result's Warning.
// Creates a directory structure: {dir}/README.md and optionally {dir}/poster{ext}
func WriteMarkdownExport(ctx context.Context, event models.Event, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = event.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var posterFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(ctx, imageURL)
		if err != nil {
			result.Warning = err
		} else {
			posterFilename = "poster" + imageExt(imageURL)
			posterPath := filepath.Join(outputDir, posterFilename)
			if err := os.WriteFile(posterPath, imageData, 0644); err != nil {
				result.Warning = fmt.Errorf("failed to save poster: %w", err)
				posterFilename = ""
			} else {
				result.Poster = posterPath
				result.Files = append(result.Files, posterPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(event, posterFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport writes an event as plain text.
//
// Defaults to {event.ID}.txt as the filename.
func WriteTextExport(event models.Event, filepath string) (string, error) {
	if filepath == "" {
		filepath = event.ID + ".txt"
	}

	textData, err := ExportToText(event)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

// WriteJSONExport writes the full event as indented JSON.
//
// Defaults to {event.ID}.json as the filename.
func WriteJSONExport(event models.Event, filepath string) (string, error) {
	if filepath == "" {
		filepath = event.ID + ".json"
	}

	data, err := shared.MarshalJSON(event, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return filepath, nil
}

// ManifestEntry describes the export of one event.
type ManifestEntry struct {
	EventID string   `json:"event_id"`
	Title   string   `json:"title"`
	Status  string   `json:"status"` // success or failed
	Files   []string `json:"files,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	Format     string          `json:"format"`
	ExportedAt time.Time       `json:"exported_at"`
	Total      int             `json:"total_events"`
	Successful int             `json:"successful_exports"`
	Failed     int             `json:"failed_exports"`
	Events     []ManifestEntry `json:"events"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func artistNames(e models.Event) []string {
	names := make([]string, 0, len(e.Artists))
	for _, a := range e.Artists {
		names = append(names, a.Name)
	}
	return names
}

// displayDate formats the event date as "2006-01-02 15:04", or returns it unchanged when unparseable.
func displayDate(e models.Event) string {
	t, err := e.Start(time.Local)
	if err != nil {
		return e.Date
	}
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}

func imageExt(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	default:
		return ".jpg"
	}
}
