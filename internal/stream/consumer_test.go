package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autohaus-heidelberg/website/internal/shared"
	tu "github.com/autohaus-heidelberg/website/internal/testing"
)

const testGrace = 40 * time.Millisecond

// pipeTransport hands out one pipe per session so tests control exactly what each session receives.
type pipeTransport struct {
	mu      sync.Mutex
	writers []*io.PipeWriter
	err     error
}

func (p *pipeTransport) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	r, w := io.Pipe()
	p.writers = append(p.writers, w)
	return r, nil
}

func (p *pipeTransport) writer(t *testing.T, i int) *io.PipeWriter {
	t.Helper()
	waitFor(t, "session opened", func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.writers) > i
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writers[i]
}

func send(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitDone(t *testing.T, c *Consumer) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to end")
	}
}

func newTestConsumer(tr Transport) *Consumer {
	return NewConsumer(Options{Transport: tr, GracePeriod: testGrace})
}

func noop(Payload) {}

func TestConsumer(t *testing.T) {
	t.Run("New Defaults", func(t *testing.T) {
		c := NewConsumer(Options{})
		if c.grace != DefaultGracePeriod {
			t.Errorf("expected default grace period, got %v", c.grace)
		}
		if c.heartbeat != DefaultHeartbeatEvent {
			t.Errorf("expected default heartbeat, got %s", c.heartbeat)
		}
		select {
		case <-c.Done():
		default:
			t.Error("expected idle consumer to report done")
		}
		if s := c.State(); s.Connected || s.Loading || s.Error != "" {
			t.Errorf("expected idle state, got %+v", s)
		}
	})

	t.Run("Progress Then Close Is A Failure", func(t *testing.T) {
		srv := tu.NewSSEServer(t, func(w *tu.SSEWriter, r *http.Request) {
			w.Send("progress", map[string]string{"message": "step 1"})
		})

		c := NewConsumer(Options{GracePeriod: testGrace})
		c.Connect(context.Background(), srv.URL, Handlers{"progress": noop, "write_complete": noop})

		if s := c.State(); !s.Connected || !s.Loading {
			t.Errorf("expected connected and loading after connect, got %+v", s)
		}
		waitDone(t, c)

		logs := c.Logs()
		if len(logs) != 2 {
			t.Fatalf("expected 2 log entries, got %d", len(logs))
		}
		if logs[0].Event != "progress" || logs[0].Message != "step 1" {
			t.Errorf("unexpected first entry: %+v", logs[0])
		}
		if logs[1].Event != ErrorEventType || logs[1].Message != ConnectionLostMessage {
			t.Errorf("unexpected error entry: %+v", logs[1])
		}

		s := c.State()
		if s.Error != ConnectionLostMessage {
			t.Errorf("expected lastError to be set, got %q", s.Error)
		}
		if s.Connected || s.Loading {
			t.Errorf("expected torn down session, got %+v", s)
		}
		if err := c.Err(); !errors.Is(err, shared.ErrStreamConnection) {
			t.Errorf("expected StreamConnectionError, got %v", err)
		}
	})

	t.Run("Complete Then Close Is Benign", func(t *testing.T) {
		srv := tu.NewSSEServer(t, func(w *tu.SSEWriter, r *http.Request) {
			w.Send("write_complete", map[string]string{"message": "done"})
		})

		c := NewConsumer(Options{GracePeriod: testGrace})
		c.Connect(context.Background(), srv.URL, Handlers{"progress": noop, "write_complete": noop})
		waitDone(t, c)

		logs := c.Logs()
		if len(logs) != 1 || logs[0].Event != "write_complete" || logs[0].Message != "done" {
			t.Errorf("expected only the completion entry, got %+v", logs)
		}
		if s := c.State(); s.Error != "" {
			t.Errorf("expected no error, got %q", s.Error)
		}
		if c.Err() != nil {
			t.Errorf("expected nil Err, got %v", c.Err())
		}
	})

	t.Run("Error Event Marks Completion", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)
		c.Connect(context.Background(), "pipe://", Handlers{"sync_error": noop})

		w := tr.writer(t, 0)
		send(w, "sync_error", `{"message":"backend failed"}`)
		w.Close()
		waitDone(t, c)

		if c.State().Error != "" {
			t.Errorf("expected server-reported error to suppress connection error, got %q", c.State().Error)
		}
		if len(c.Logs()) != 1 {
			t.Errorf("expected 1 entry, got %d", len(c.Logs()))
		}
	})

	t.Run("Heartbeats Are Not Logged", func(t *testing.T) {
		srv := tu.NewSSEServer(t, func(w *tu.SSEWriter, r *http.Request) {
			w.Send("heartbeat", map[string]string{"message": "ping"})
			w.Send("progress", map[string]string{"message": "a"})
			w.Comment("keep-alive")
			w.Send("heartbeat", map[string]string{"message": "ping"})
			w.Send("progress", map[string]string{"message": "b"})
			w.Send("sync_complete", map[string]string{"message": "c"})
		})

		var beats atomic.Int32
		c := NewConsumer(Options{GracePeriod: testGrace})
		c.Connect(context.Background(), srv.URL, Handlers{
			"heartbeat":     func(Payload) { beats.Add(1) },
			"progress":      noop,
			"sync_complete": noop,
		})
		waitDone(t, c)

		logs := c.Logs()
		if len(logs) != 3 {
			t.Fatalf("expected 3 non-heartbeat entries, got %d", len(logs))
		}
		for i, expected := range []string{"a", "b", "c"} {
			if logs[i].Message != expected {
				t.Errorf("entry %d: expected %s, got %s", i, expected, logs[i].Message)
			}
		}
		if beats.Load() != 2 {
			t.Errorf("expected heartbeat handler called twice, got %d", beats.Load())
		}
	})

	t.Run("Handler Runs After Append", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)

		seen := make(chan int, 1)
		c.Connect(context.Background(), "pipe://", Handlers{
			"progress": func(p Payload) { seen <- len(c.Logs()) },
		})
		send(tr.writer(t, 0), "progress", `{"message":"x"}`)

		select {
		case n := <-seen:
			if n != 1 {
				t.Errorf("expected entry appended before handler, got %d entries", n)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("handler not called")
		}
		c.Disconnect()
	})

	t.Run("Teardown Before Handler Skips It", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)

		var once sync.Once
		unsubscribe := c.Subscribe(func(s Snapshot) {
			if len(s.Logs) == 1 {
				once.Do(c.Disconnect)
			}
		})
		defer unsubscribe()

		var calls atomic.Int32
		c.Connect(context.Background(), "pipe://", Handlers{
			"progress": func(Payload) { calls.Add(1) },
		})
		send(tr.writer(t, 0), "progress", `{"message":"x"}`)
		waitDone(t, c)

		if len(c.Logs()) != 1 {
			t.Errorf("expected the event to be logged, got %d entries", len(c.Logs()))
		}
		if calls.Load() != 0 {
			t.Errorf("expected no handler call after teardown, got %d", calls.Load())
		}
	})

	t.Run("Unregistered And Malformed Events Are Skipped", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)

		var decoded struct {
			Message string `json:"message"`
			Count   int    `json:"count"`
		}
		c.Connect(context.Background(), "pipe://", Handlers{
			"progress":      func(p Payload) { p.Decode(&decoded) },
			"done_complete": noop,
		})

		w := tr.writer(t, 0)
		send(w, "unknown", `{"message":"ignored"}`)
		send(w, "progress", `not json`)
		send(w, "progress", `{"message":"ok","count":3}`)
		send(w, "done_complete", `{}`)
		w.Close()
		waitDone(t, c)

		logs := c.Logs()
		if len(logs) != 2 || logs[0].Message != "ok" || logs[1].Message != "" {
			t.Errorf("unexpected log: %+v", logs)
		}
		if decoded.Count != 3 {
			t.Errorf("expected decoded payload, got %+v", decoded)
		}
		if c.State().Error != "" {
			t.Error("expected malformed payload not to fail the session")
		}
	})

	t.Run("Disconnect Is Idempotent", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)

		var notes atomic.Int32
		unsubscribe := c.Subscribe(func(Snapshot) { notes.Add(1) })
		defer unsubscribe()

		c.Connect(context.Background(), "pipe://", Handlers{"progress": noop})
		tr.writer(t, 0)

		c.Disconnect()
		after := notes.Load()
		before := c.State()

		c.Disconnect()
		if notes.Load() != after {
			t.Error("expected second disconnect not to notify")
		}
		if s := c.State(); s.Connected != before.Connected || s.Loading != before.Loading || s.Error != before.Error {
			t.Errorf("expected no state change, got %+v", s)
		}
		if s := c.State(); s.Connected || s.Loading {
			t.Errorf("expected closed session, got %+v", s)
		}
	})

	t.Run("Disconnect During Grace Suppresses Error", func(t *testing.T) {
		tr := &pipeTransport{}
		c := NewConsumer(Options{Transport: tr, GracePeriod: 200 * time.Millisecond})
		c.Connect(context.Background(), "pipe://", Handlers{"progress": noop})

		w := tr.writer(t, 0)
		send(w, "progress", `{"message":"step"}`)
		w.CloseWithError(errors.New("connection reset"))
		waitFor(t, "grace timer", func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.timer != nil
		})

		c.Disconnect()
		time.Sleep(300 * time.Millisecond)

		if c.State().Error != "" {
			t.Errorf("expected no error after disconnect, got %q", c.State().Error)
		}
		if len(c.Logs()) != 1 {
			t.Errorf("expected no error entry, got %d entries", len(c.Logs()))
		}
	})

	t.Run("Reconnect Tears Down Previous Session", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)

		var oldCalls, newCalls atomic.Int32
		c.Connect(context.Background(), "pipe://one", Handlers{
			"progress":       func(Payload) { oldCalls.Add(1) },
			"write_complete": noop,
		})
		first := tr.writer(t, 0)
		send(first, "write_complete", `{"message":"first"}`)
		waitFor(t, "first entry", func() bool { return len(c.Logs()) == 1 })
		firstDone := c.Done()

		c.Connect(context.Background(), "pipe://two", Handlers{"progress": func(Payload) { newCalls.Add(1) }})

		select {
		case <-firstDone:
		default:
			t.Error("expected previous session to be torn down")
		}
		if s := c.State(); !s.Connected || !s.Loading {
			t.Errorf("expected new session open, got %+v", s)
		}
		c.mu.Lock()
		completed := c.completed
		c.mu.Unlock()
		if completed {
			t.Error("expected completed flag reset for new session")
		}

		// The old pipe is closed by teardown, so writes fail and nothing reaches the new session.
		send(first, "progress", `{"message":"late"}`)

		second := tr.writer(t, 1)
		send(second, "progress", `{"message":"second"}`)
		waitFor(t, "second entry", func() bool { return len(c.Logs()) == 2 })

		logs := c.Logs()
		if logs[0].Message != "first" || logs[1].Message != "second" {
			t.Errorf("expected old log kept and new entry appended, got %+v", logs)
		}
		if oldCalls.Load() != 0 || newCalls.Load() != 1 {
			t.Errorf("expected only new handler called once, got old=%d new=%d", oldCalls.Load(), newCalls.Load())
		}

		second.Close()
		waitDone(t, c)
		if c.State().Error != ConnectionLostMessage {
			t.Errorf("expected new session to fail without completion, got %q", c.State().Error)
		}
	})

	t.Run("Stale Grace Timer Is Ignored", func(t *testing.T) {
		tr := &pipeTransport{}
		c := NewConsumer(Options{Transport: tr, GracePeriod: 100 * time.Millisecond})
		c.Connect(context.Background(), "pipe://one", Handlers{"progress": noop})
		tr.writer(t, 0).Close()
		waitFor(t, "grace timer", func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.timer != nil
		})

		c.Connect(context.Background(), "pipe://two", Handlers{"progress": noop})
		tr.writer(t, 1)
		time.Sleep(200 * time.Millisecond)

		if s := c.State(); s.Error != "" || !s.Connected {
			t.Errorf("expected new session unaffected by old timer, got %+v", s)
		}
		c.Disconnect()
	})

	t.Run("Open Failure Is Classified After Grace", func(t *testing.T) {
		c := newTestConsumer(&pipeTransport{err: &shared.HTTPError{Status: 401}})
		c.Connect(context.Background(), "pipe://", Handlers{"progress": noop})
		waitDone(t, c)

		if c.State().Error != ConnectionLostMessage {
			t.Errorf("expected connection error, got %q", c.State().Error)
		}
		if shared.StatusCode(c.Err()) != 401 {
			t.Errorf("expected cause to be preserved, got %v", c.Err())
		}
	})

	t.Run("HTTP Transport", func(t *testing.T) {
		srv := tu.NewSSEServer(t, func(w *tu.SSEWriter, r *http.Request) {
			if got := r.Header.Get("Accept"); got != "text/event-stream" {
				t.Errorf("expected event-stream accept header, got %s", got)
			}
		})
		body, err := HTTPTransport{}.Open(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("expected stream to open, got %v", err)
		}
		body.Close()

		rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("invalid token"))
		}))
		defer rejecting.Close()

		_, err = HTTPTransport{}.Open(context.Background(), rejecting.URL)
		if shared.StatusCode(err) != http.StatusForbidden {
			t.Errorf("expected 403 HTTPError, got %v", err)
		}

		_, err = HTTPTransport{}.Open(context.Background(), "http://127.0.0.1:0/")
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	t.Run("Parent Cancel Ends Quietly", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)
		ctx, cancel := context.WithCancel(context.Background())
		c.Connect(ctx, "pipe://", Handlers{"progress": noop})
		tr.writer(t, 0)

		cancel()
		waitDone(t, c)
		time.Sleep(2 * testGrace)

		if s := c.State(); s.Error != "" || s.Connected {
			t.Errorf("expected quiet teardown, got %+v", s)
		}
	})

	t.Run("ClearLogs And ClearError", func(t *testing.T) {
		tr := &pipeTransport{}
		c := newTestConsumer(tr)
		c.Connect(context.Background(), "pipe://", Handlers{"progress": noop})
		w := tr.writer(t, 0)
		send(w, "progress", `{"message":"x"}`)
		w.Close()
		waitDone(t, c)

		if len(c.Logs()) != 2 || c.State().Error == "" {
			t.Fatalf("expected entries and error, got %+v", c.State())
		}

		c.ClearLogs()
		if len(c.Logs()) != 0 {
			t.Error("expected empty log")
		}
		if c.State().Error == "" {
			t.Error("expected ClearLogs to keep the error")
		}

		c.ClearError()
		if c.State().Error != "" || c.Err() != nil {
			t.Error("expected error cleared")
		}
	})

	t.Run("Subscribers Receive Snapshots", func(t *testing.T) {
		srv := tu.NewSSEServer(t, func(w *tu.SSEWriter, r *http.Request) {
			w.Send("sync_complete", map[string]string{"message": "done"})
		})

		var mu sync.Mutex
		var snaps []Snapshot
		c := NewConsumer(Options{GracePeriod: testGrace})
		unsubscribe := c.Subscribe(func(s Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		})

		c.Connect(context.Background(), srv.URL, Handlers{"sync_complete": noop})
		waitDone(t, c)
		waitFor(t, "final snapshot", func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(snaps) > 0 && !snaps[len(snaps)-1].Connected
		})
		unsubscribe()

		mu.Lock()
		defer mu.Unlock()
		if !snaps[0].Connected {
			t.Error("expected first snapshot to be connected")
		}
		last := snaps[len(snaps)-1]
		if len(last.Logs) != 1 || last.Loading {
			t.Errorf("unexpected final snapshot: %+v", last)
		}
	})
}

func TestPayload(t *testing.T) {
	p, err := decodePayload(Event{Type: "progress", Data: `{"message":"m","n":2}`})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.Message() != "m" {
		t.Errorf("expected message m, got %s", p.Message())
	}
	if v, ok := p.Field("n"); !ok || v.(float64) != 2 {
		t.Errorf("expected field n, got %v", v)
	}

	numeric, _ := decodePayload(Event{Data: `{"message":42}`})
	if numeric.Message() != "42" {
		t.Errorf("expected formatted number, got %s", numeric.Message())
	}

	list, _ := decodePayload(Event{Data: `[1,2]`})
	if list.Message() != "" {
		t.Errorf("expected no message for arrays, got %s", list.Message())
	}

	_, err = decodePayload(Event{Type: "progress", Data: ""})
	var decodeErr *shared.PayloadDecodeError
	if !errors.As(err, &decodeErr) || decodeErr.Event != "progress" {
		t.Errorf("expected PayloadDecodeError, got %v", err)
	}

	if err := (Payload{}).Decode(&struct{}{}); err == nil {
		t.Error("expected error decoding empty payload")
	}
}
