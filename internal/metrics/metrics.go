// Package metrics holds the Prometheus collectors for ytmonitor.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the pipeline reports to.
type Metrics struct {
	ExternalCalls     *prometheus.CounterVec
	Resolutions       *prometheus.CounterVec
	AggregateCache    *prometheus.CounterVec
	AggregateDuration prometheus.Histogram
	ChannelFailures   *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	CircuitChanges    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExternalCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytmonitor_external_calls_total",
				Help: "Calls to the video platform, by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytmonitor_resolutions_total",
				Help: "Channel reference resolutions, by result.",
			},
			[]string{"result"},
		),
		AggregateCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytmonitor_aggregate_cache_total",
				Help: "Aggregation memo lookups, by result (hit, miss).",
			},
			[]string{"result"},
		),
		AggregateDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ytmonitor_aggregate_duration_seconds",
				Help:    "Duration of uncached aggregations.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ChannelFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytmonitor_channel_failures_total",
				Help: "Channels skipped during aggregation, by stage.",
			},
			[]string{"stage"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytmonitor_http_requests_total",
				Help: "HTTP requests served, by route and status.",
			},
			[]string{"route", "status"},
		),
		CircuitChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytmonitor_circuit_transitions_total",
				Help: "Circuit breaker state changes, by host and new state.",
			},
			[]string{"host", "state"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ExternalCalls,
			m.Resolutions,
			m.AggregateCache,
			m.AggregateDuration,
			m.ChannelFailures,
			m.HTTPRequests,
			m.CircuitChanges,
		)
	}
	return m
}

// ExternalCall records one call to the video platform.
func (m *Metrics) ExternalCall(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ExternalCalls.WithLabelValues(op, outcome).Inc()
}

// Resolution records a resolver outcome: "cached", "direct", "searched",
// "scraped" or "failed".
func (m *Metrics) Resolution(result string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(result).Inc()
}

// CacheLookup records a memo hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.AggregateCache.WithLabelValues("hit").Inc()
		return
	}
	m.AggregateCache.WithLabelValues("miss").Inc()
}

// ObserveAggregate records the duration of an uncached aggregation.
func (m *Metrics) ObserveAggregate(d time.Duration) {
	if m == nil {
		return
	}
	m.AggregateDuration.Observe(d.Seconds())
}

// ChannelFailure records a skipped channel.
func (m *Metrics) ChannelFailure(stage string) {
	if m == nil {
		return
	}
	m.ChannelFailures.WithLabelValues(stage).Inc()
}

// HTTPRequest records a served request.
func (m *Metrics) HTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}

// CircuitChange records a host's circuit moving to state.
func (m *Metrics) CircuitChange(host, state string) {
	if m == nil {
		return
	}
	m.CircuitChanges.WithLabelValues(host, state).Inc()
}
