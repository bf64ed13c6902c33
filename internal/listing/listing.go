package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/autohaus-heidelberg/website/internal/media"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/charmbracelet/log"
)

// Source provides the full set of events to list.
type Source interface {
	Events(ctx context.Context) ([]models.Event, error)
}

// EventLister is the part of services.EventService the API source needs.
type EventLister interface {
	GetAll(ctx context.Context) ([]models.Event, error)
}

// Cacher stores a fresh API result for offline use.
type Cacher interface {
	CacheEvents(events []models.Event) error
}

// eventsFile is the on-disk layout of a static listing: a top-level [[events]] array.
type eventsFile struct {
	Events []models.Event `toml:"events"`
}

// FileSource reads events from a static TOML file.
type FileSource struct {
	path string
}

// NewFileSource creates a [FileSource] for path. A leading "~" is expanded.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: shared.ExpandHome(path)}
}

func (s *FileSource) Path() string { return s.path }

// Events decodes the file. Unknown keys are rejected so typos in hand-edited files surface.
func (s *FileSource) Events(ctx context.Context) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var f eventsFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", shared.ErrInvalidInput, s.path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys in %s: %v", shared.ErrInvalidInput, s.path, undecoded)
	}

	for i, e := range f.Events {
		if e.ID == "" || e.Date == "" || e.Title == "" {
			return nil, fmt.Errorf("%w: event %d in %s needs id, date and title", shared.ErrInvalidInput, i+1, s.path)
		}
	}
	return f.Events, nil
}

// WriteFile stores events as a static listing file, replacing any existing one.
func WriteFile(path string, events []models.Event) error {
	path = shared.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(eventsFile{Events: events}); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write events file: %w", err)
	}
	return nil
}

// APISource fetches events from the backend, caching each result.
//
// When the backend cannot be reached and a fallback is set, the fallback's events are returned instead.
type APISource struct {
	api      EventLister
	cache    Cacher
	fallback Source
	logger   *log.Logger
}

// NewAPISource creates an [APISource]. cache and fallback may be nil.
func NewAPISource(api EventLister, cache Cacher, fallback Source, logger *log.Logger) *APISource {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &APISource{api: api, cache: cache, fallback: fallback, logger: logger}
}

func (s *APISource) Events(ctx context.Context) ([]models.Event, error) {
	events, err := s.api.GetAll(ctx)
	if err != nil {
		if s.fallback == nil || !errors.Is(err, shared.ErrNetwork) {
			return nil, err
		}
		s.logger.Warn("backend unreachable, using cached events", "error", err)
		return s.fallback.Events(ctx)
	}

	if s.cache != nil {
		if err := s.cache.CacheEvents(events); err != nil {
			s.logger.Warn("failed to cache events", "error", err)
		}
	}
	return events, nil
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Split partitions events relative to the day of now.
//
// Events dated today or later are upcoming, soonest first. Everything else is past, most recent first.
// Event dates without an offset are read in now's location. Events with unparseable dates are dropped.
func Split(events []models.Event, now time.Time) (upcoming, past []models.Event) {
	type dated struct {
		event models.Event
		start time.Time
	}

	cutoff := StartOfDay(now)
	var up, down []dated
	for _, e := range events {
		start, err := e.Start(now.Location())
		if err != nil {
			continue
		}
		if start.Before(cutoff) {
			down = append(down, dated{e, start})
		} else {
			up = append(up, dated{e, start})
		}
	}

	slices.SortStableFunc(up, func(a, b dated) int { return a.start.Compare(b.start) })
	slices.SortStableFunc(down, func(a, b dated) int { return b.start.Compare(a.start) })

	upcoming = make([]models.Event, 0, len(up))
	for _, d := range up {
		upcoming = append(upcoming, d.event)
	}
	past = make([]models.Event, 0, len(down))
	for _, d := range down {
		past = append(past, d.event)
	}
	return upcoming, past
}

// Find returns the event whose id or listing hash equals key.
func Find(events []models.Event, key string) (*models.Event, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: event key", shared.ErrMissingArgument)
	}
	for i := range events {
		e := &events[i]
		if e.ID == key || media.EventHash(e.Date, e.Title) == key {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrEventNotFound, key)
}

// Key returns the listing hash used in public event URLs.
func Key(e models.Event) string {
	return media.EventHash(e.Date, e.Title)
}
