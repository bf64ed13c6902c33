package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the listing server's collectors.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	sourceLoads   *prometheus.CounterVec
	eventsListed  *prometheus.GaugeVec
	lastLoadStamp prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autohaus_http_requests_total",
			Help: "Total HTTP requests processed by the listing server",
		}, []string{"method", "path", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autohaus_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		sourceLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autohaus_listing_loads_total",
			Help: "Event source loads grouped by outcome",
		}, []string{"status"}),
		eventsListed: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autohaus_listing_events",
			Help: "Number of events in the most recent listing, by section",
		}, []string{"section"}),
		lastLoadStamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "autohaus_listing_last_load_timestamp_seconds",
			Help: "Unix time of the last successful event source load",
		}),
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	m.requests.WithLabelValues(method, path, status).Inc()
	m.duration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveLoad records an event source load.
func (m *Metrics) ObserveLoad(upcoming, past int, at time.Time, err error) {
	if err != nil {
		m.sourceLoads.WithLabelValues("failed").Inc()
		return
	}
	m.sourceLoads.WithLabelValues("success").Inc()
	m.eventsListed.WithLabelValues("upcoming").Set(float64(upcoming))
	m.eventsListed.WithLabelValues("past").Set(float64(past))
	m.lastLoadStamp.Set(float64(at.Unix()))
}
