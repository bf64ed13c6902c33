package tasks

import (
	"fmt"

	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/stream"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Connect Phase = iota
	StreamEvent
	StreamClosed
	FetchEvents
	CacheEvents
	ExportEvent
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case Connect:
		return "connect"
	case StreamEvent:
		return "stream_event"
	case StreamClosed:
		return "stream_closed"
	case FetchEvents:
		return "fetch_events"
	case CacheEvents:
		return "cache_events"
	case ExportEvent:
		return "export_event"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func connectUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Connect,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Connecting to %s...", url),
	}
}

// snapshotUpdate reports the newest log entry of s. Data carries the full snapshot.
func snapshotUpdate(s stream.Snapshot) ProgressUpdate {
	u := ProgressUpdate{
		Phase: StreamEvent,
		Step:  len(s.Logs),
		Data:  s,
	}
	if n := len(s.Logs); n > 0 {
		last := s.Logs[n-1]
		u.Message = fmt.Sprintf("[%s] %s", last.Timestamp, last.Event)
		if last.Message != "" {
			u.Message += ": " + last.Message
		}
	}
	if !s.Connected {
		u.Phase = StreamClosed
	}
	return u
}

func streamClosedUpdate(run *models.StreamRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StreamClosed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run #%d %s", run.Sequence(), run.Status()),
		Data:    run,
	}
}

func fetchEventsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchEvents,
		Step:    1,
		Total:   1,
		Message: "Fetching events from the backend...",
	}
}

func cacheEventsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CacheEvents,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Caching %d events...", count),
	}
}

func exportingEventUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEvent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, title),
	}
}

func exportCompletedUpdate(step, total int, title string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEvent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, title, filesCount),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportEvent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, title, err),
	}
}

func writeManifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing manifest %s...", path),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
