// Package metrics exposes Prometheus collectors for mutation outcomes and
// sync status.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation results used as the "result" label.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected" // precondition failed, never dispatched
)

// Metrics holds the labsync collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	mutations   *prometheus.CounterVec
	rollbacks   *prometheus.CounterVec
	outstanding *prometheus.GaugeVec
	deliveries  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labsync_mutations_total",
			Help: "Mutations by collection, operation and result",
		}, []string{"collection", "op", "result"}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labsync_rollbacks_total",
			Help: "Optimistic changes reverted after a failed write",
		}, []string{"collection", "op"}),
		outstanding: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labsync_outstanding",
			Help: "Entities with a write in flight",
		}, []string{"collection"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labsync_deliveries_total",
			Help: "Subscription snapshots received",
		}, []string{"collection"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labsync_mutation_duration_seconds",
			Help:    "Time from dispatch to adapter response",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "op"}),
	}
}

// Dispatched starts timing a write. The returned func records the result
// and must be called exactly once.
func (m *Metrics) Dispatched(collection, op string) func(result string) {
	if m == nil {
		return func(string) {}
	}
	timer := prometheus.NewTimer(m.duration.WithLabelValues(collection, op))
	return func(result string) {
		timer.ObserveDuration()
		m.mutations.WithLabelValues(collection, op, result).Inc()
	}
}

// Rejected counts a mutation refused before dispatch.
func (m *Metrics) Rejected(collection, op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(collection, op, ResultRejected).Inc()
}

// RolledBack counts entities whose optimistic value was reverted.
func (m *Metrics) RolledBack(collection, op string, n int) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(collection, op).Add(float64(n))
}

// SetOutstanding records the size of the in-flight set.
func (m *Metrics) SetOutstanding(collection string, n int) {
	if m == nil {
		return
	}
	m.outstanding.WithLabelValues(collection).Set(float64(n))
}

// Delivered counts one subscription snapshot.
func (m *Metrics) Delivered(collection string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(collection).Inc()
}
