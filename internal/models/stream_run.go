package models

import (
	"errors"
	"strings"
	"time"
)

// StreamKind distinguishes the read-only sync stream from the write stream.
type StreamKind string

const (
	StreamSync  StreamKind = "sync"
	StreamWrite StreamKind = "write"
)

// RunLogEntry is one persisted stream log line.
type RunLogEntry struct {
	ID         string
	Position   int
	Event      string
	Message    string
	Payload    string // JSON encoded
	ReceivedAt time.Time
}

// StreamRun records one observed event stream session.
type StreamRun struct {
	id         string
	sequence   int
	kind       StreamKind
	url        string
	eventIDs   []string
	completed  bool
	errMessage string
	startedAt  time.Time
	finishedAt *time.Time
	createdAt  time.Time
	updatedAt  time.Time
	deletedAt  *time.Time
	entries    []RunLogEntry
}

var _ Model = (*StreamRun)(nil)

// NewStreamRun creates a run started now. The url must not carry the access token.
func NewStreamRun(sequence int, kind StreamKind, url string, eventIDs []string) *StreamRun {
	now := time.Now()
	return &StreamRun{
		sequence:  sequence,
		kind:      kind,
		url:       url,
		eventIDs:  eventIDs,
		startedAt: now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *StreamRun) ID() string               { return r.id }
func (r *StreamRun) Sequence() int            { return r.sequence }
func (r *StreamRun) Kind() StreamKind         { return r.kind }
func (r *StreamRun) URL() string              { return r.url }
func (r *StreamRun) EventIDs() []string       { return r.eventIDs }
func (r *StreamRun) Completed() bool          { return r.completed }
func (r *StreamRun) ErrorMessage() string     { return r.errMessage }
func (r *StreamRun) StartedAt() time.Time     { return r.startedAt }
func (r *StreamRun) FinishedAt() *time.Time   { return r.finishedAt }
func (r *StreamRun) CreatedAt() time.Time     { return r.createdAt }
func (r *StreamRun) UpdatedAt() time.Time     { return r.updatedAt }
func (r *StreamRun) DeletedAt() *time.Time    { return r.deletedAt }
func (r *StreamRun) Entries() []RunLogEntry   { return r.entries }
func (r *StreamRun) SetID(id string)          { r.id = id }
func (r *StreamRun) SetSequence(seq int)      { r.sequence = seq }
func (r *StreamRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *StreamRun) SetDeletedAt(t *time.Time) {
	r.deletedAt = t
}

// SetTimes restores timestamps read from storage.
func (r *StreamRun) SetTimes(started, created time.Time, finished *time.Time) {
	r.startedAt = started
	r.createdAt = created
	r.finishedAt = finished
}

// SetOutcome restores the session outcome read from storage.
func (r *StreamRun) SetOutcome(completed bool, errMessage string) {
	r.completed = completed
	r.errMessage = errMessage
}

// SetEntries replaces the run's log.
func (r *StreamRun) SetEntries(entries []RunLogEntry) { r.entries = entries }

// Finish marks the run as ended with the session outcome.
func (r *StreamRun) Finish(completed bool, errMessage string) {
	now := time.Now()
	r.completed = completed
	r.errMessage = errMessage
	r.finishedAt = &now
	r.updatedAt = now
}

// Status summarizes the outcome for display.
func (r *StreamRun) Status() string {
	switch {
	case r.finishedAt == nil:
		return "running"
	case r.errMessage != "":
		return "failed"
	case r.completed:
		return "completed"
	default:
		return "closed"
	}
}

// Validate checks required fields.
func (r *StreamRun) Validate() error {
	if r.kind != StreamSync && r.kind != StreamWrite {
		return errors.New("invalid stream kind")
	}
	if r.url == "" {
		return errors.New("url is required")
	}
	if strings.Contains(r.url, "token=") {
		return errors.New("url must not contain the access token")
	}
	if r.kind == StreamWrite && len(r.eventIDs) == 0 {
		return errors.New("write runs require event ids")
	}
	return nil
}
