// Package metrics exposes the Prometheus instrumentation for the speech
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values used by the handlers and the worker.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics holds the counters and histograms of the service.
type Metrics struct {
	uploads           *prometheus.CounterVec
	synthesisRequests *prometheus.CounterVec
	synthesisDuration prometheus.Histogram
	uploadBytes       prometheus.Histogram
}

// New registers the service metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Total number of processed upload requests.",
			},
			[]string{"status"},
		),
		synthesisRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthesis_requests_total",
				Help: "Total number of speech synthesis requests.",
			},
			[]string{"engine", "status"},
		),
		synthesisDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "synthesis_duration_seconds",
				Help:    "Duration of speech synthesis requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		uploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upload_bytes",
				Help:    "Size of uploaded files in bytes.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
	}
}

// RecordUpload counts one upload request and, on success, its payload size.
func (m *Metrics) RecordUpload(status string, sizeBytes int) {
	m.uploads.WithLabelValues(status).Inc()

	if status == StatusSuccess {
		m.uploadBytes.Observe(float64(sizeBytes))
	}
}

// RecordSynthesis counts one synthesis request and its duration.
func (m *Metrics) RecordSynthesis(engine, status string, duration time.Duration) {
	m.synthesisRequests.WithLabelValues(engine, status).Inc()
	m.synthesisDuration.Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
