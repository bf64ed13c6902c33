package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/charmbracelet/log"
)

const (
	DefaultGracePeriod    = 300 * time.Millisecond
	DefaultHeartbeatEvent = "heartbeat"

	// ErrorEventType tags log entries appended for a classified connection failure.
	ErrorEventType = "error"

	ConnectionLostMessage = "SSE connection error: The connection to the server was lost or timed out. The operation may have been interrupted."

	timestampLayout = "15:04:05"
)

// Payload is the decoded body of one event.
type Payload struct {
	Raw   json.RawMessage
	Value any
}

// Message returns the payload's "message" field, or "" when absent.
func (p Payload) Message() string {
	m, ok := p.Value.(map[string]any)
	if !ok {
		return ""
	}
	switch v := m["message"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Field returns a top-level field of an object payload.
func (p Payload) Field(name string) (any, bool) {
	m, ok := p.Value.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// Decode unmarshals the raw payload into v.
func (p Payload) Decode(v any) error {
	if len(p.Raw) == 0 {
		return io.ErrUnexpectedEOF
	}
	return json.Unmarshal(p.Raw, v)
}

// Handler receives the decoded payload of a registered event type.
type Handler func(Payload)

// Handlers maps event types to handlers. Only registered types are logged and dispatched.
type Handlers map[string]Handler

// LogEntry is one received event in display form.
type LogEntry struct {
	Timestamp string
	Event     string
	Message   string
	Payload   Payload
	At        time.Time
}

// Snapshot is a copy of the consumer's observable state.
type Snapshot struct {
	Connected bool
	Loading   bool
	Completed bool // a completion or error event arrived
	Error     string
	Logs      []LogEntry
}

// Transport opens the byte stream behind a session.
type Transport interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPTransport opens streams with a plain GET. Stream URLs carry their own token.
type HTTPTransport struct {
	Client *http.Client
}

func (t HTTPTransport) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 0}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &shared.NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &shared.HTTPError{Status: resp.StatusCode, Body: body}
	}
	return resp.Body, nil
}

// Options configures a [Consumer].
type Options struct {
	Transport      Transport
	GracePeriod    time.Duration
	HeartbeatEvent string
	Logger         *log.Logger
	Now            func() time.Time
}

// Consumer manages one event stream session at a time and keeps its log.
//
// A transport error does not fail the session immediately: after the grace period the failure is
// only recorded if no completion or error event arrived in the meantime and the session is still
// the live one. Every session carries a generation; callbacks from older generations are ignored.
type Consumer struct {
	transport Transport
	grace     time.Duration
	heartbeat string
	logger    *log.Logger
	now       func() time.Time

	mu        sync.Mutex
	gen       uint64
	connected bool
	loading   bool
	completed bool
	lastErr   *shared.StreamConnectionError
	logs      []LogEntry
	cancel    context.CancelFunc
	timer     *time.Timer
	done      chan struct{}

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewConsumer creates an idle [Consumer].
func NewConsumer(opts Options) *Consumer {
	if opts.Transport == nil {
		opts.Transport = HTTPTransport{}
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.HeartbeatEvent == "" {
		opts.HeartbeatEvent = DefaultHeartbeatEvent
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	done := make(chan struct{})
	close(done)

	return &Consumer{
		transport: opts.Transport,
		grace:     opts.GracePeriod,
		heartbeat: opts.HeartbeatEvent,
		logger:    shared.WithLogger(opts.Logger, "component", "stream"),
		now:       opts.Now,
		done:      done,
		subs:      make(map[int]func(Snapshot)),
	}
}

// Connect tears down any open session and starts a new one. It returns once the session is started;
// events are delivered from a background goroutine. The log is kept across sessions.
func (c *Consumer) Connect(ctx context.Context, url string, handlers Handlers) {
	c.Disconnect()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.lastErr = nil
	c.completed = false
	c.connected = true
	c.loading = true
	sessionCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.logger.Debug("connecting", "gen", gen, "events", len(handlers))
	c.notify()

	go c.run(sessionCtx, gen, url, handlers)
}

// Disconnect closes the open session. It is a no-op when nothing is open.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	if !c.connected && c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.mu.Unlock()

	c.notify()
}

// Close disconnects and drops all subscribers.
func (c *Consumer) Close() {
	c.Disconnect()

	c.subMu.Lock()
	clear(c.subs)
	c.subMu.Unlock()
}

// Done is closed when the current session ends. It is already closed when no session is open.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// ClearLogs empties the log without touching session state.
func (c *Consumer) ClearLogs() {
	c.mu.Lock()
	c.logs = nil
	c.mu.Unlock()
	c.notify()
}

// ClearError resets the last classified error.
func (c *Consumer) ClearError() {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
}

// Logs returns a copy of the log in receipt order.
func (c *Consumer) Logs() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.logs...)
}

// Err returns the classified connection failure of the last session, if any.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return nil
	}
	return c.lastErr
}

// State returns a snapshot of the observable state.
func (c *Consumer) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change. The returned func unregisters it.
func (c *Consumer) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Consumer) snapshotLocked() Snapshot {
	s := Snapshot{
		Connected: c.connected,
		Loading:   c.loading,
		Completed: c.completed,
		Logs:      append([]LogEntry(nil), c.logs...),
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Message
	}
	return s
}

func (c *Consumer) notify() {
	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	if len(fns) == 0 {
		return
	}

	snap := c.State()
	for _, fn := range fns {
		fn(snap)
	}
}

// teardownLocked ends the current session and invalidates its callbacks.
func (c *Consumer) teardownLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.connected = false
	c.loading = false
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *Consumer) run(ctx context.Context, gen uint64, url string, handlers Handlers) {
	body, err := c.transport.Open(ctx, url)
	if err != nil {
		c.transportError(ctx, gen, err)
		return
	}
	defer body.Close()

	// Unblock the reader when the session is torn down.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	reader := NewReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			c.transportError(ctx, gen, err)
			return
		}
		c.dispatch(gen, ev, handlers)
	}
}

func (c *Consumer) dispatch(gen uint64, ev Event, handlers Handlers) {
	handler, ok := handlers[ev.Type]
	if !ok {
		c.logger.Debug("ignoring unregistered event", "event", ev.Type)
		return
	}

	payload, err := decodePayload(ev)
	if err != nil {
		c.logger.Warn("skipping event", "error", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if ev.Type != c.heartbeat {
		at := c.now()
		c.logs = append(c.logs, LogEntry{
			Timestamp: at.Format(timestampLayout),
			Event:     ev.Type,
			Message:   payload.Message(),
			Payload:   payload,
			At:        at,
		})
	}
	if strings.Contains(ev.Type, "complete") || strings.Contains(ev.Type, "error") {
		c.completed = true
	}
	c.mu.Unlock()

	c.notify()
	if handler == nil || !c.current(gen) {
		return
	}
	// A handler already running when the session is torn down still returns normally.
	handler(payload)
}

// current reports whether gen is still the live session.
func (c *Consumer) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func decodePayload(ev Event) (Payload, error) {
	var v any
	if err := json.Unmarshal([]byte(ev.Data), &v); err != nil {
		return Payload{}, &shared.PayloadDecodeError{Event: ev.Type, Data: ev.Data, Err: err}
	}
	return Payload{Raw: json.RawMessage(ev.Data), Value: v}, nil
}

// transportError schedules classification of a stream end or failure after the grace period.
func (c *Consumer) transportError(ctx context.Context, gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.timer != nil {
		c.mu.Unlock()
		return
	}

	// Parent context cancelled: the caller is done with the session.
	if ctx.Err() != nil {
		c.teardownLocked()
		c.mu.Unlock()
		c.notify()
		return
	}

	c.logger.Debug("stream ended, waiting before classifying", "gen", gen, "cause", cause, "grace", c.grace)
	c.timer = time.AfterFunc(c.grace, func() { c.resolve(gen, cause) })
	c.mu.Unlock()
}

// resolve records a connection failure unless the session completed or was replaced, then tears it down.
func (c *Consumer) resolve(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil

	if !c.completed && c.connected {
		c.lastErr = &shared.StreamConnectionError{Message: ConnectionLostMessage, Err: cause}
		at := c.now()
		raw, _ := json.Marshal(map[string]string{"message": ConnectionLostMessage, "cause": cause.Error()})
		var v any
		json.Unmarshal(raw, &v)
		c.logs = append(c.logs, LogEntry{
			Timestamp: at.Format(timestampLayout),
			Event:     ErrorEventType,
			Message:   ConnectionLostMessage,
			Payload:   Payload{Raw: raw, Value: v},
			At:        at,
		})
		c.logger.Error("stream connection lost", "cause", cause)
	} else {
		c.logger.Debug("stream closed after completion")
	}

	c.teardownLocked()
	c.mu.Unlock()

	c.notify()
}
