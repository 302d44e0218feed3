// Package metrics counts cache outcomes, remote round-trips and retries.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devicelab-dev/webfind/pkg/cache"
)

const namespace = "webfind"

// Metrics holds the engine's collectors.
type Metrics struct {
	CacheOutcomes *prometheus.CounterVec
	Resolutions   *prometheus.CounterVec
	RemoteCalls   *prometheus.CounterVec
	RemoteLatency *prometheus.HistogramVec
	TextRetries   prometheus.Counter
	StaleRetries  prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "outcomes_total",
				Help:      "Cache checks by outcome",
			},
			[]string{"outcome"},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "control",
				Name:      "resolutions_total",
				Help:      "Control resolutions by result code",
			},
			[]string{"result"},
		),
		RemoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "calls_total",
				Help:      "Remote source calls by operation and error class",
			},
			[]string{"op", "class"},
		),
		RemoteLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "latency_seconds",
				Help:      "Remote source call latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"op"},
		),
		TextRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "text",
				Name:      "retries_total",
				Help:      "Text entry attempts retried after an invalid element state",
			},
		),
		StaleRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "control",
				Name:      "stale_retries_total",
				Help:      "Actions retried after the element went stale",
			},
		),
	}
}

// ObserveCache counts a cache outcome.
func (m *Metrics) ObserveCache(o cache.Outcome) {
	if m == nil {
		return
	}
	m.CacheOutcomes.WithLabelValues(o.String()).Inc()
}

// ObserveResolution counts a Resolve result; result is "ok" or an error code.
func (m *Metrics) ObserveResolution(result string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(result).Inc()
}

// ObserveTextRetry counts one retried text entry attempt.
func (m *Metrics) ObserveTextRetry() {
	if m == nil {
		return
	}
	m.TextRetries.Inc()
}

// ObserveStaleRetry counts one action retried after re-resolving.
func (m *Metrics) ObserveStaleRetry() {
	if m == nil {
		return
	}
	m.StaleRetries.Inc()
}
