// Package metrics provides the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// Counters
	RequestsTotal  *prometheus.CounterVec
	MirrorFailures prometheus.Counter

	// Histograms (seconds)
	RequestDuration   prometheus.Observer
	SummarizeDuration prometheus.Observer

	// Gauges
	ActiveLanes       prometheus.Gauge
	SummarizerHealthy prometheus.Gauge // 1=healthy,0=unhealthy
)

// summaryBuckets cover the 60s summarization race.
var summaryBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90}

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songtldr_requests_total", Help: "Song requests by terminal outcome"}, []string{"kind"})
		MirrorFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "songtldr_admin_mirror_failures_total", Help: "Admin mirror deliveries that failed"})
		RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "songtldr_request_duration_seconds", Help: "End-to-end request pipeline duration seconds", Buckets: summaryBuckets})
		SummarizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "songtldr_summarize_duration_seconds", Help: "Summarizer call duration seconds", Buckets: summaryBuckets})
		ActiveLanes = promauto.NewGauge(prometheus.GaugeOpts{Name: "songtldr_active_lanes", Help: "Chats with a request in flight or queued"})
		SummarizerHealthy = promauto.NewGauge(prometheus.GaugeOpts{Name: "songtldr_summarizer_healthy", Help: "Summarizer health check result healthy=1 unhealthy=0"})
	})
}

// ObserveRequest counts one finished request and records its duration.
func ObserveRequest(kind string, d time.Duration) {
	if RequestsTotal != nil {
		RequestsTotal.WithLabelValues(kind).Inc()
	}
	if RequestDuration != nil && d > 0 {
		RequestDuration.Observe(d.Seconds())
	}
}

// ObserveSummarize records one settled summarizer call.
func ObserveSummarize(d time.Duration) {
	if SummarizeDuration != nil && d > 0 {
		SummarizeDuration.Observe(d.Seconds())
	}
}

// MirrorFailed counts one failed admin mirror.
func MirrorFailed() {
	if MirrorFailures != nil {
		MirrorFailures.Inc()
	}
}

// SetActiveLanes records the number of busy chat lanes.
func SetActiveLanes(n int) {
	if ActiveLanes != nil {
		ActiveLanes.Set(float64(n))
	}
}

// SetSummarizerHealthy sets the gauge to 1 if healthy else 0.
func SetSummarizerHealthy(healthy bool) {
	if SummarizerHealthy == nil {
		return
	}
	if healthy {
		SummarizerHealthy.Set(1)
		return
	}
	SummarizerHealthy.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
