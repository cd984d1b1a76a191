// Package metrics exposes Prometheus collectors for the awareness engine.
//
// All methods are nil-safe so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Augmentation results.
const (
	AugmentOK       = "ok"
	AugmentFallback = "fallback"
	AugmentTimeout  = "timeout"
)

// Metrics provides observability for detection and dispatch.
type Metrics struct {
	// Cycles by trigger (tick, manual, inject) and outcome
	Cycles *prometheus.CounterVec

	CycleDuration prometheus.Histogram

	// Changes by category and source (detected, injected)
	Changes *prometheus.CounterVec

	FieldWarnings prometheus.Counter

	// Notifications delivered by type
	Delivered *prometheus.CounterVec

	// Notifications staged but not delivered (subscriber gone)
	Dropped prometheus.Counter

	Augmentations *prometheus.CounterVec

	CacheInvalidations prometheus.Counter

	Subscribers  prometheus.Gauge
	HistoryDepth prometheus.Gauge
}

// New registers all collectors on reg. A nil reg uses a private registry,
// which keeps tests and embedded engines from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "awareness_cycles_total",
			Help: "Pipeline cycles by trigger and outcome",
		}, []string{"trigger", "outcome"}),

		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "awareness_cycle_duration_seconds",
			Help:    "Duration of completed pipeline cycles",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Changes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "awareness_changes_total",
			Help: "Changes processed by category and source",
		}, []string{"category", "source"}),

		FieldWarnings: f.NewCounter(prometheus.CounterOpts{
			Name: "awareness_field_warnings_total",
			Help: "Snapshot fields skipped as missing or malformed",
		}),

		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "awareness_notifications_delivered_total",
			Help: "Notifications delivered to outboxes by type",
		}, []string{"type"}),

		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "awareness_notifications_dropped_total",
			Help: "Notifications dropped because the subscriber was gone at delivery",
		}),

		Augmentations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "awareness_augmentations_total",
			Help: "Text augmentation attempts by result",
		}, []string{"result"}),

		CacheInvalidations: f.NewCounter(prometheus.CounterOpts{
			Name: "awareness_cache_invalidations_total",
			Help: "Context cache entries dropped by change invalidation",
		}),

		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "awareness_subscribers",
			Help: "Active subscribers",
		}),

		HistoryDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "awareness_snapshot_history_depth",
			Help: "Snapshots held in history",
		}),
	}
}

// ObserveCycle records a cycle outcome. Duration is only observed for
// cycles that ran.
func (m *Metrics) ObserveCycle(trigger, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(trigger, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.CycleDuration.Observe(d.Seconds())
	}
}

// IncChange records one processed change.
func (m *Metrics) IncChange(category, source string) {
	if m != nil {
		m.Changes.WithLabelValues(category, source).Inc()
	}
}

// AddFieldWarnings records skipped snapshot fields.
func (m *Metrics) AddFieldWarnings(n int) {
	if m != nil && n > 0 {
		m.FieldWarnings.Add(float64(n))
	}
}

// IncDelivered records one delivered notification.
func (m *Metrics) IncDelivered(notificationType string) {
	if m != nil {
		m.Delivered.WithLabelValues(notificationType).Inc()
	}
}

// AddDropped records dropped notifications.
func (m *Metrics) AddDropped(n int) {
	if m != nil && n > 0 {
		m.Dropped.Add(float64(n))
	}
}

// IncAugmentation records an augmentation attempt.
func (m *Metrics) IncAugmentation(result string) {
	if m != nil {
		m.Augmentations.WithLabelValues(result).Inc()
	}
}

// AddCacheInvalidations records invalidated cache entries.
func (m *Metrics) AddCacheInvalidations(n int) {
	if m != nil && n > 0 {
		m.CacheInvalidations.Add(float64(n))
	}
}

// SetSubscribers records the active subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m != nil {
		m.Subscribers.Set(float64(n))
	}
}

// SetHistoryDepth records the snapshot history depth.
func (m *Metrics) SetHistoryDepth(n int) {
	if m != nil {
		m.HistoryDepth.Set(float64(n))
	}
}
