package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the back-office core.
type Metrics struct {
	PermissionChecks    *prometheus.CounterVec
	WorkflowTransitions *prometheus.CounterVec
	AuditEntries        *prometheus.CounterVec
	AlertsRaised        *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PermissionChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronos_permission_checks_total",
			Help: "Permission checks by module and outcome (allowed, denied, requires_approval)",
		}, []string{"module", "outcome"}),
		WorkflowTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronos_workflow_transitions_total",
			Help: "Workflow instance transitions by action type",
		}, []string{"action"}),
		AuditEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronos_audit_entries_total",
			Help: "Audit entries recorded by module and severity",
		}, []string{"module", "severity"}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronos_audit_alerts_total",
			Help: "Automatic audit alerts raised by type",
		}, []string{"type"}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronos_notifications_sent_total",
			Help: "Notifications stored and delivered by category",
		}, []string{"category"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chronos_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
