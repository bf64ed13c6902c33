package stream

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultEventType is used for events that carry no event field.
const DefaultEventType = "message"

const maxLineSize = 1024 * 1024

// Event is one dispatched server-sent event.
type Event struct {
	Type  string
	Data  string
	ID    string
	Retry time.Duration
}

// Reader splits an event stream into [Event] values.
type Reader struct {
	scanner *bufio.Scanner
	lastID  string
}

// NewReader creates a [Reader] over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next blocks until the next complete event. It returns [io.EOF] when the stream ends cleanly.
//
// An event still being assembled when the stream ends is discarded.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if !hasData {
				ev = Event{}
				continue
			}
			if ev.Type == "" {
				ev.Type = DefaultEventType
			}
			ev.Data = strings.Join(data, "\n")
			ev.ID = r.lastID
			return ev, nil
		}

		// Comment lines keep the connection alive.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			if !strings.Contains(value, "\x00") {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
