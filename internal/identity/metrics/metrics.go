// Package metrics exposes Prometheus metrics for identity operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity module. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	IdentitiesCreated   *prometheus.CounterVec
	ValidationRejected  *prometheus.CounterVec
	AllocationRetries   *prometheus.CounterVec
	AllocationOverRange *prometheus.CounterVec
	AllocationFallback  prometheus.Counter
	StatusTransitions   *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	AuditEntriesWritten prometheus.Counter
	NotifyFailures      *prometheus.CounterVec
	OperationLatency    *prometheus.HistogramVec
}

// New registers the identity metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IdentitiesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_identities_created_total",
			Help: "Identities created by sub-category",
		}, []string{"sub_category"}),

		ValidationRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_validation_rejections_total",
			Help: "Validation problems by rule",
		}, []string{"rule"}),

		AllocationRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_allocation_retries_total",
			Help: "Identifier allocations retried after an id collision",
		}, []string{"sub_category"}),

		AllocationOverRange: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_allocation_over_range_total",
			Help: "Identifiers allocated past their sub-category's nominal range end",
		}, []string{"sub_category"}),

		AllocationFallback: f.NewCounter(prometheus.CounterOpts{
			Name: "campusid_allocation_fallback_total",
			Help: "Identifiers allocated with the fallback TMP scheme",
		}),

		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_status_transitions_total",
			Help: "Applied status transitions",
		}, []string{"from", "to"}),

		TransitionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_status_transitions_rejected_total",
			Help: "Rejected status transitions",
		}, []string{"from", "to"}),

		AuditEntriesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "campusid_audit_entries_written_total",
			Help: "Audit entries appended",
		}),

		NotifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusid_notification_failures_total",
			Help: "Identity-created notifications that failed",
		}, []string{"channel"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusid_identity_operation_duration_seconds",
			Help:    "Duration of identity service operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) IncrementCreated(sub string) {
	if m != nil {
		m.IdentitiesCreated.WithLabelValues(sub).Inc()
	}
}

func (m *Metrics) IncrementValidationRejected(rule string) {
	if m != nil {
		m.ValidationRejected.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) IncrementAllocationRetry(sub string) {
	if m != nil {
		m.AllocationRetries.WithLabelValues(sub).Inc()
	}
}

func (m *Metrics) IncrementOverRange(sub string) {
	if m != nil {
		m.AllocationOverRange.WithLabelValues(sub).Inc()
	}
}

func (m *Metrics) IncrementFallback() {
	if m != nil {
		m.AllocationFallback.Inc()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementTransitionRejected(from, to string) {
	if m != nil {
		m.TransitionsRejected.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) AddAuditEntries(n int) {
	if m != nil {
		m.AuditEntriesWritten.Add(float64(n))
	}
}

func (m *Metrics) IncrementNotifyFailure(channel string) {
	if m != nil {
		m.NotifyFailures.WithLabelValues(channel).Inc()
	}
}

// ObserveOperation records how long an operation took and whether it failed.
func (m *Metrics) ObserveOperation(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OperationLatency.WithLabelValues(op, outcome).Observe(d.Seconds())
}
