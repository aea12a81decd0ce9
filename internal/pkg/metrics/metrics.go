// Package metrics exposes the worker's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExportsTotal counts finished export runs by terminal status.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slideloop_exports_total",
		Help: "Export runs finished, by terminal status.",
	}, []string{"status"})

	// SlideRenderDuration observes the wall time of a single slide render.
	SlideRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slideloop_slide_render_duration_seconds",
		Help:    "Duration of a single slide render.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
	})

	// SlideRenderRetries counts slides that needed a second render attempt.
	SlideRenderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slideloop_slide_render_retries_total",
		Help: "Slide renders retried after a first failure.",
	})

	// MaterializeTotal counts background image re-host attempts by outcome.
	MaterializeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slideloop_materialize_total",
		Help: "Background image re-host attempts, by outcome.",
	}, []string{"outcome"})

	// QueueWaitDuration observes how long a run sat queued before a worker
	// picked it up.
	QueueWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slideloop_queue_wait_duration_seconds",
		Help:    "Time between run creation and worker pickup.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// ObserveQueueWait records the queue delay for a run created at createdAt.
func ObserveQueueWait(createdAt time.Time) {
	if createdAt.IsZero() {
		return
	}
	QueueWaitDuration.Observe(time.Since(createdAt).Seconds())
}

// NewServer returns an HTTP server exposing /metrics on the given port.
func NewServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
