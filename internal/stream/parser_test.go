package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func readAll(t *testing.T, input string) []Event {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		events = append(events, ev)
	}
}

func TestReader(t *testing.T) {
	t.Run("Named Events", func(t *testing.T) {
		events := readAll(t, "event: progress\ndata: {\"message\":\"step 1\"}\n\nevent: write_complete\ndata: {\"message\":\"done\"}\n\n")

		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Type != "progress" || events[0].Data != `{"message":"step 1"}` {
			t.Errorf("unexpected first event: %+v", events[0])
		}
		if events[1].Type != "write_complete" {
			t.Errorf("expected write_complete, got %s", events[1].Type)
		}
	})

	t.Run("Default Type", func(t *testing.T) {
		events := readAll(t, "data: hello\n\n")
		if len(events) != 1 || events[0].Type != DefaultEventType {
			t.Errorf("expected message event, got %+v", events)
		}
	})

	t.Run("Multi-line Data", func(t *testing.T) {
		events := readAll(t, "data: line one\ndata: line two\ndata\n\n")
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Data != "line one\nline two\n" {
			t.Errorf("expected joined data, got %q", events[0].Data)
		}
	})

	t.Run("Comments And Blank Lines", func(t *testing.T) {
		events := readAll(t, ": keep-alive\n\n\nevent: ping\n\ndata: x\n\n")
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}
		if events[0].Type != DefaultEventType {
			t.Errorf("expected event type reset after empty dispatch, got %s", events[0].Type)
		}
	})

	t.Run("CRLF And No Space", func(t *testing.T) {
		events := readAll(t, "event:progress\r\ndata:{}\r\n\r\n")
		if len(events) != 1 || events[0].Type != "progress" || events[0].Data != "{}" {
			t.Errorf("unexpected events: %+v", events)
		}
	})

	t.Run("ID And Retry", func(t *testing.T) {
		events := readAll(t, "id: 7\nretry: 1500\ndata: a\n\ndata: b\n\n")
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].ID != "7" || events[0].Retry != 1500*time.Millisecond {
			t.Errorf("unexpected first event: %+v", events[0])
		}
		if events[1].ID != "7" {
			t.Errorf("expected last event id to persist, got %q", events[1].ID)
		}
	})

	t.Run("Partial Event At EOF Is Discarded", func(t *testing.T) {
		events := readAll(t, "data: complete\n\nevent: progress\ndata: partial")
		if len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}
	})
}
