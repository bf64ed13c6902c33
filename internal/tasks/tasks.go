// package tasks runs the long-lived operations of the admin client.
//
// The core abstraction is Engine, which watches sync/write event streams, refreshes the event cache and exports events.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/services"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/autohaus-heidelberg/website/internal/stream"
	"github.com/charmbracelet/log"
)

// DefaultEventTypes are the stream event types the backend emits for sync and write operations.
var DefaultEventTypes = []string{
	stream.DefaultHeartbeatEvent,
	"progress",
	"sync_complete",
	"sync_error",
	"write_complete",
	"write_error",
	"error",
}

// LogOnly registers types without a handler so they are logged but trigger nothing else.
func LogOnly(types ...string) stream.Handlers {
	h := make(stream.Handlers, len(types))
	for _, t := range types {
		h[t] = nil
	}
	return h
}

// IsFailureEvent reports whether an event type is a failure the server reports, as opposed to a completion.
func IsFailureEvent(event string) bool {
	return event == "error" || strings.HasSuffix(event, "_error")
}

// serverFailure returns the failure carried by the last terminal event in logs, if that event is an error.
func serverFailure(logs []stream.LogEntry) *shared.StreamFailureError {
	for i := len(logs) - 1; i >= 0; i-- {
		event := logs[i].Event
		if !strings.Contains(event, "complete") && !strings.Contains(event, "error") {
			continue
		}
		if !IsFailureEvent(event) {
			return nil
		}
		msg := logs[i].Message
		if msg == "" {
			msg = "server reported an error"
		}
		return &shared.StreamFailureError{Event: event, Message: msg}
	}
	return nil
}

// StreamConsumer is the part of [stream.Consumer] a watch needs.
type StreamConsumer interface {
	Connect(ctx context.Context, url string, handlers stream.Handlers)
	Disconnect()
	Done() <-chan struct{}
	State() stream.Snapshot
	Err() error
	Subscribe(fn func(stream.Snapshot)) func()
}

var _ StreamConsumer = (*stream.Consumer)(nil)

// StreamURLs builds authenticated stream URLs.
type StreamURLs interface {
	SyncURL() (string, error)
	WriteURL(eventIDs []string) (string, error)
}

// RunRecorder persists stream sessions. Satisfied by repositories.StreamRunRepository.
type RunRecorder interface {
	Create(run *models.StreamRun) error
	Update(run *models.StreamRun) error
	AppendEntries(runID string, entries []models.RunLogEntry) error
}

// EventFetcher lists events from the backend.
type EventFetcher interface {
	GetAll(ctx context.Context) ([]models.Event, error)
}

// EventCacher stores fetched events for offline use.
type EventCacher interface {
	CacheEvents(events []models.Event) error
}

// WatchResult is the final state of a watched session.
type WatchResult struct {
	Snapshot stream.Snapshot
	Logs     []stream.LogEntry          // entries appended during this session only
	Failure  *shared.StreamFailureError // set when the session ended on a server-reported error event
	Err      error                      // classified connection failure or Failure, if any
}

// Succeeded reports whether the session ended on a completion event.
func (r *WatchResult) Succeeded() bool {
	return r.Snapshot.Completed && r.Failure == nil
}

// RunResult is a watched session together with its persisted record.
type RunResult struct {
	*WatchResult
	Run *models.StreamRun // nil when no recorder is configured
}

// Engine runs stream watches and event maintenance tasks.
type Engine struct {
	streams StreamURLs
	runs    RunRecorder
	events  EventFetcher
	cache   EventCacher
	logger  *log.Logger
}

// EngineOpts holds the engine's collaborators. Runs and Cache are optional.
type EngineOpts struct {
	Streams StreamURLs
	Runs    RunRecorder
	Events  EventFetcher
	Cache   EventCacher
	Logger  *log.Logger
}

// NewEngine creates a new Engine with the provided collaborators.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Engine{
		streams: opts.Streams,
		runs:    opts.Runs,
		events:  opts.Events,
		cache:   opts.Cache,
		logger:  shared.WithLogger(opts.Logger, "component", "tasks"),
	}
}

// WatchStream connects c to url and blocks until the session ends or ctx is cancelled.
//
// Every state change is forwarded to prog without blocking. Cancelling ctx disconnects the session.
func WatchStream(ctx context.Context, c StreamConsumer, url string, handlers stream.Handlers, prog chan<- ProgressUpdate) (*WatchResult, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: stream url", shared.ErrMissingArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	before := len(c.State().Logs)

	sendProgress(prog, connectUpdate(services.Redact(url)))
	unsubscribe := c.Subscribe(func(s stream.Snapshot) {
		sendProgress(prog, snapshotUpdate(s))
	})
	defer unsubscribe()

	c.Connect(ctx, url, handlers)

	select {
	case <-c.Done():
	case <-ctx.Done():
		c.Disconnect()
	}

	snap := c.State()
	sendProgress(prog, snapshotUpdate(snap))

	logs := snap.Logs
	if before <= len(logs) {
		logs = logs[before:]
	}

	res := &WatchResult{Snapshot: snap, Logs: logs, Err: c.Err()}
	if snap.Completed {
		if f := serverFailure(logs); f != nil {
			res.Failure, res.Err = f, f
		}
	}
	return res, nil
}

// Sync watches the read-only sync stream.
func (e *Engine) Sync(ctx context.Context, c StreamConsumer, handlers stream.Handlers, prog chan<- ProgressUpdate) (*RunResult, error) {
	if e.streams == nil {
		return nil, fmt.Errorf("%w: stream service not initialized", shared.ErrServiceUnavailable)
	}
	url, err := e.streams.SyncURL()
	if err != nil {
		return nil, err
	}
	return e.watch(ctx, c, models.StreamSync, url, nil, handlers, prog)
}

// Write watches the write stream for eventIDs.
func (e *Engine) Write(ctx context.Context, c StreamConsumer, eventIDs []string, handlers stream.Handlers, prog chan<- ProgressUpdate) (*RunResult, error) {
	if e.streams == nil {
		return nil, fmt.Errorf("%w: stream service not initialized", shared.ErrServiceUnavailable)
	}
	if len(eventIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one event id", shared.ErrMissingArgument)
	}
	url, err := e.streams.WriteURL(eventIDs)
	if err != nil {
		return nil, err
	}
	return e.watch(ctx, c, models.StreamWrite, url, eventIDs, handlers, prog)
}

// watch runs one session and records it. Recording failures are logged, never returned.
func (e *Engine) watch(
	ctx context.Context,
	c StreamConsumer,
	kind models.StreamKind,
	url string,
	eventIDs []string,
	handlers stream.Handlers,
	prog chan<- ProgressUpdate,
) (*RunResult, error) {
	var run *models.StreamRun
	if e.runs != nil {
		run = models.NewStreamRun(0, kind, services.Redact(url), eventIDs)
		if err := e.runs.Create(run); err != nil {
			e.logger.Warn("failed to record stream run", "error", err)
			run = nil
		}
	}

	res, err := WatchStream(ctx, c, url, handlers, prog)
	if err != nil {
		if run != nil {
			run.Finish(false, err.Error())
			e.record(run, nil)
		}
		return nil, err
	}

	result := &RunResult{WatchResult: res}
	if run != nil {
		msg := res.Snapshot.Error
		if res.Failure != nil {
			msg = res.Failure.Message
		}
		if msg == "" && ctx.Err() != nil {
			msg = "interrupted"
		}
		run.Finish(res.Succeeded(), msg)
		e.record(run, res.Logs)
		result.Run = run
		sendProgress(prog, streamClosedUpdate(run))
	}
	return result, nil
}

func (e *Engine) record(run *models.StreamRun, logs []stream.LogEntry) {
	if len(logs) > 0 {
		if err := e.runs.AppendEntries(run.ID(), ToRunEntries(logs)); err != nil {
			e.logger.Warn("failed to store stream log", "run", run.Sequence(), "error", err)
		}
	}
	if err := e.runs.Update(run); err != nil {
		e.logger.Warn("failed to finish stream run", "run", run.Sequence(), "error", err)
	}
}

// ToRunEntries converts log entries into their persisted form.
func ToRunEntries(logs []stream.LogEntry) []models.RunLogEntry {
	entries := make([]models.RunLogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, models.RunLogEntry{
			Event:      l.Event,
			Message:    l.Message,
			Payload:    string(l.Payload.Raw),
			ReceivedAt: l.At,
		})
	}
	return entries
}

// RefreshCache fetches all events and stores them in the cache.
func (e *Engine) RefreshCache(ctx context.Context, prog chan<- ProgressUpdate) ([]models.Event, error) {
	if e.events == nil {
		return nil, fmt.Errorf("%w: event service not initialized", shared.ErrServiceUnavailable)
	}
	if e.cache == nil {
		return nil, fmt.Errorf("%w: event cache not initialized", shared.ErrServiceUnavailable)
	}

	sendProgress(prog, fetchEventsUpdate())
	events, err := e.events.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	sendProgress(prog, cacheEventsUpdate(len(events)))
	if err := e.cache.CacheEvents(events); err != nil {
		return nil, err
	}
	return events, nil
}
