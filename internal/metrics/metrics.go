package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// entity: quotation, project, milestone, milestone_billing, purchase_order
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_state_transitions_total",
			Help: "Committed lifecycle transitions",
		},
		[]string{"entity", "to"},
	)

	PaymentDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_payment_decisions_total",
			Help: "Payment accept/reject decisions by outcome",
		},
		[]string{"target", "decision"},
	)

	AttachmentCleanups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_attachment_cleanups_total",
			Help: "Background deletions of stored files",
		},
		[]string{"reason", "status"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_notification_failures_total",
			Help: "Notifications a sink failed to deliver",
		},
		[]string{"sink"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementTransition(entity, to string) {
	StateTransitions.WithLabelValues(entity, to).Inc()
}

func IncrementPaymentDecision(target, decision string) {
	PaymentDecisions.WithLabelValues(target, decision).Inc()
}

func IncrementAttachmentCleanup(reason, status string) {
	AttachmentCleanups.WithLabelValues(reason, status).Inc()
}

func IncrementNotificationFailure(sink string) {
	NotificationFailures.WithLabelValues(sink).Inc()
}
