package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autohaus-heidelberg/website/internal/listing"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
)

type countingSource struct {
	events []models.Event
	err    error
	calls  atomic.Int32
}

func (s *countingSource) Events(ctx context.Context) ([]models.Event, error) {
	s.calls.Add(1)
	return s.events, s.err
}

var testNow = time.Date(2024, 5, 17, 15, 0, 0, 0, time.UTC)

func testEvents() []models.Event {
	return []models.Event{
		{ID: "1", Date: "2024-05-10T20:00:00", Title: "Old Show"},
		{ID: "2", Date: "2024-05-17T10:00:00", Title: "Today Matinee"},
		{ID: "3", Date: "2024-06-01T20:00:00", Title: "Summer Show"},
		{ID: "4", Date: "2024-04-01T20:00:00", Title: "Older Show"},
	}
}

func newTestServer(src listing.Source, ttl time.Duration) *Server {
	return New(Options{
		Source:   src,
		CacheTTL: ttl,
		Logger:   shared.NewLogger(io.Discard),
		Now:      func() time.Time { return testNow },
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeListing(t *testing.T, rec *httptest.ResponseRecorder) ListingResponse {
	t.Helper()
	var resp ListingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func ids(views []EventView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestListingHandler(t *testing.T) {
	src := &countingSource{events: testEvents()}
	srv := newTestServer(src, 0)

	t.Run("Upcoming", func(t *testing.T) {
		rec := get(t, srv, "/events/upcoming")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}

		resp := decodeListing(t, rec)
		if got := strings.Join(ids(resp.Events), ","); got != "2,3" {
			t.Errorf("expected upcoming 2,3, got %s", got)
		}
		if resp.Count != 2 {
			t.Errorf("expected count 2, got %d", resp.Count)
		}
		for _, e := range resp.Events {
			if e.Key != listing.Key(e.Event) {
				t.Errorf("expected key %s for %s, got %s", listing.Key(e.Event), e.ID, e.Key)
			}
		}
	})

	t.Run("Past", func(t *testing.T) {
		resp := decodeListing(t, get(t, srv, "/events/past"))
		if got := strings.Join(ids(resp.Events), ","); got != "1,4" {
			t.Errorf("expected past 1,4, got %s", got)
		}
	})

	t.Run("Event By ID", func(t *testing.T) {
		rec := get(t, srv, "/events/3")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var view EventView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatal(err)
		}
		if view.Title != "Summer Show" {
			t.Errorf("expected Summer Show, got %s", view.Title)
		}
	})

	t.Run("Event By Key", func(t *testing.T) {
		key := listing.Key(testEvents()[0])
		rec := get(t, srv, "/events/"+key)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Old Show") {
			t.Errorf("expected Old Show in %s", rec.Body.String())
		}
	})

	t.Run("Unknown Event", func(t *testing.T) {
		rec := get(t, srv, "/events/nope")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "error") {
			t.Errorf("expected error body, got %s", rec.Body.String())
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events/upcoming", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Empty Source", func(t *testing.T) {
		resp := decodeListing(t, get(t, newTestServer(&countingSource{}, 0), "/events/upcoming"))
		if resp.Count != 0 || resp.Events == nil {
			t.Errorf("expected empty list, got %+v", resp)
		}
	})

	t.Run("Source Failure", func(t *testing.T) {
		rec := get(t, newTestServer(&countingSource{err: errors.New("boom")}, 0), "/events/past")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("No Source", func(t *testing.T) {
		rec := get(t, newTestServer(nil, 0), "/events/past")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})
}

func TestNewListingHandler(t *testing.T) {
	t.Run("Nil Metrics And Logger", func(t *testing.T) {
		h := NewListingHandler(&countingSource{err: errors.New("boom")}, 0, nil, nil)
		h.now = func() time.Time { return testNow }

		rec := get(t, h, "/events/past")
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}

		h = NewListingHandler(&countingSource{events: testEvents()}, 0, nil, nil)
		h.now = func() time.Time { return testNow }
		if resp := decodeListing(t, get(t, h, "/events/upcoming")); resp.Count != 2 {
			t.Errorf("expected 2 upcoming events, got %d", resp.Count)
		}
	})
}

func TestListingCache(t *testing.T) {
	t.Run("Reuses Within TTL", func(t *testing.T) {
		src := &countingSource{events: testEvents()}
		srv := newTestServer(src, time.Minute)

		for range 3 {
			get(t, srv, "/events/upcoming")
		}
		if n := src.calls.Load(); n != 1 {
			t.Errorf("expected 1 source load, got %d", n)
		}
	})

	t.Run("Reloads Without TTL", func(t *testing.T) {
		src := &countingSource{events: testEvents()}
		srv := newTestServer(src, 0)

		get(t, srv, "/events/upcoming")
		get(t, srv, "/events/past")
		if n := src.calls.Load(); n != 2 {
			t.Errorf("expected 2 source loads, got %d", n)
		}
	})

	t.Run("Reloads After Expiry", func(t *testing.T) {
		src := &countingSource{events: testEvents()}
		now := testNow
		srv := New(Options{
			Source:   src,
			CacheTTL: time.Minute,
			Logger:   shared.NewLogger(io.Discard),
			Now:      func() time.Time { return now },
		})

		get(t, srv, "/events/upcoming")
		now = now.Add(2 * time.Minute)
		get(t, srv, "/events/upcoming")
		if n := src.calls.Load(); n != 2 {
			t.Errorf("expected 2 source loads, got %d", n)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&countingSource{events: testEvents()}, 0)

	t.Run("Healthz", func(t *testing.T) {
		rec := get(t, srv, "/healthz")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("expected ok, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		get(t, srv, "/events/upcoming")
		get(t, srv, "/events/missing")

		body := get(t, srv, "/metrics").Body.String()
		for _, want := range []string{
			`autohaus_http_requests_total{method="GET",path="GET /events/upcoming",status="200"} 1`,
			`autohaus_http_requests_total{method="GET",path="GET /events/{key}",status="404"} 1`,
			`autohaus_listing_events{section="upcoming"} 2`,
			`autohaus_listing_loads_total{status="success"} 2`,
		} {
			if !strings.Contains(body, want) {
				t.Errorf("expected metrics to contain %q", want)
			}
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		get(t, r, "/x")

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("expected first,second,handler, got %s", got)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(RecoverMiddleware(shared.NewLogger(io.Discard)))
		r.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := get(t, r, "/panic")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestRun(t *testing.T) {
	t.Run("Shuts Down On Cancel", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addr := l.Addr().String()
		l.Close()

		srv := New(Options{Addr: addr, Source: &countingSource{}, Logger: shared.NewLogger(io.Discard)})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx) }()

		var resp *http.Response
		for range 50 {
			if resp, err = http.Get("http://" + addr + "/healthz"); err == nil {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if err != nil {
			t.Fatalf("server never came up: %v", err)
		}
		resp.Body.Close()

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})

	t.Run("Bad Address", func(t *testing.T) {
		srv := New(Options{Addr: "256.0.0.1:-1", Logger: shared.NewLogger(io.Discard)})
		if err := srv.Run(context.Background()); err == nil {
			t.Error("expected listen error")
		}
	})
}
