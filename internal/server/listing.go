package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/autohaus-heidelberg/website/internal/listing"
	"github.com/autohaus-heidelberg/website/internal/models"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

const loadTimeout = 30 * time.Second

// EventView is an event as served, with the key used in /events/{key}.
type EventView struct {
	models.Event
	Key string `json:"key"`
}

// ListingResponse is the body of the upcoming and past endpoints.
type ListingResponse struct {
	Count  int         `json:"count"`
	Events []EventView `json:"events"`
}

// ListingHandler serves the event listing from a [listing.Source].
//
// Loaded events are reused for ttl; concurrent reloads share one source call.
type ListingHandler struct {
	source  listing.Source
	ttl     time.Duration
	metrics *Metrics
	logger  *log.Logger
	now     func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	events   []models.Event
	loadedAt time.Time
}

// NewListingHandler creates a handler over source. A nil metrics or logger gets a private registry or the default logger.
func NewListingHandler(source listing.Source, ttl time.Duration, metrics *Metrics, logger *log.Logger) *ListingHandler {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ListingHandler{
		source:  source,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *ListingHandler) Routes() []string {
	return []string{
		"GET /events/upcoming",
		"GET /events/past",
		"GET /events/{key}",
	}
}

func (h *ListingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	events, err := h.load(r.Context())
	if err != nil {
		h.logger.Error("failed to load events", "error", err)
		writeError(w, http.StatusBadGateway, "events unavailable")
		return
	}

	upcoming, past := listing.Split(events, h.now())

	switch r.URL.Path {
	case "/events/upcoming":
		writeJSON(w, http.StatusOK, toListing(upcoming))
	case "/events/past":
		writeJSON(w, http.StatusOK, toListing(past))
	default:
		e, err := listing.Find(events, r.PathValue("key"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, EventView{Event: *e, Key: listing.Key(*e)})
	}
}

// load returns the cached events, reloading when they are older than ttl.
func (h *ListingHandler) load(ctx context.Context) ([]models.Event, error) {
	if h.source == nil {
		return nil, shared.ErrServiceUnavailable
	}

	h.mu.RLock()
	events, loadedAt := h.events, h.loadedAt
	h.mu.RUnlock()
	if events != nil && h.ttl > 0 && h.now().Sub(loadedAt) < h.ttl {
		return events, nil
	}

	v, err, _ := h.group.Do("events", func() (any, error) {
		// Detached from the request so one client hanging up does not fail the others.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		events, err := h.source.Events(loadCtx)
		now := h.now()
		if err != nil {
			h.metrics.ObserveLoad(0, 0, now, err)
			return nil, err
		}
		if events == nil {
			events = []models.Event{}
		}

		upcoming, past := listing.Split(events, now)
		h.metrics.ObserveLoad(len(upcoming), len(past), now, nil)

		h.mu.Lock()
		h.events, h.loadedAt = events, now
		h.mu.Unlock()
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Event), nil
}

func toListing(events []models.Event) ListingResponse {
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, EventView{Event: e, Key: listing.Key(e)})
	}
	return ListingResponse{Count: len(views), Events: views}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
