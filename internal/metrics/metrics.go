// Package metrics exposes Prometheus collectors for the scan loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors for one process
type Metrics struct {
	FramesTotal        prometheus.Counter
	MatchingFrames     prometheus.Counter
	EventsTotal        *prometheus.CounterVec
	WriteFailures      *prometheus.CounterVec
	ConsumerFailures   *prometheus.CounterVec
	FrameDuration      prometheus.Histogram
	BestScore          prometheus.Gauge
	ConsecutiveMatches prometheus.Gauge
	CooldownRemaining  prometheus.Gauge
	References         prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "framematch_frames_total",
			Help: "Total frames read from the decoder",
		}),
		MatchingFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "framematch_matching_frames_total",
			Help: "Frames within the cutoff of at least one reference, before debouncing",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framematch_events_total",
			Help: "Match and sample events emitted, by kind",
		}, []string{"kind"}),
		WriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framematch_write_failures_total",
			Help: "Frames that could not be persisted, by kind",
		}, []string{"kind"}),
		ConsumerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framematch_consumer_failures_total",
			Help: "Event consumer errors, by consumer",
		}, []string{"consumer"}),
		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "framematch_frame_duration_seconds",
			Help:    "Time spent classifying one frame",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		BestScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "framematch_best_score",
			Help: "Most similar reference score of the last frame",
		}),
		ConsecutiveMatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "framematch_consecutive_matches",
			Help: "Current run of back-to-back matching frames",
		}),
		CooldownRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "framematch_cooldown_frames",
			Help: "Frames left before another match event may fire",
		}),
		References: factory.NewGauge(prometheus.GaugeOpts{
			Name: "framematch_references",
			Help: "Number of loaded reference histograms",
		}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
