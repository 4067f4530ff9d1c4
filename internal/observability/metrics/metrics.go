package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dispatches_total",
			Help: "Dispatch invocations by target kind and record status.",
		},
		[]string{"service", "target", "status"},
	)

	PushMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_total",
			Help: "Individual push messages by outcome.",
		},
		[]string{"service", "result"},
	)

	ReceiptChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_receipt_checks_total",
			Help: "Delivery receipts resolved by outcome.",
		},
		[]string{"service", "result"},
	)

	DeadTokensClearedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dead_tokens_cleared_total",
			Help: "Registrations dropped after a DeviceNotRegistered receipt.",
		},
		[]string{"service"},
	)

	PollRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_polls_total",
			Help: "Poll requests served, split by kick delivery.",
		},
		[]string{"service", "has_kick"},
	)

	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_operations_total",
			Help: "Sync queue operations by kind and outcome.",
		},
		[]string{"service", "kind", "result"},
	)

	IntakeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_events_total",
			Help: "Platform events consumed from the broker by outcome.",
		},
		[]string{"service", "result"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	DispatchesTotal = DispatchesTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	PushMessagesTotal = PushMessagesTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	ReceiptChecksTotal = ReceiptChecksTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	DeadTokensClearedTotal = DeadTokensClearedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	PollRequestsTotal = PollRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	SyncOperationsTotal = SyncOperationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	IntakeEventsTotal = IntakeEventsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		DispatchesTotal,
		PushMessagesTotal,
		ReceiptChecksTotal,
		DeadTokensClearedTotal,
		PollRequestsTotal,
		SyncOperationsTotal,
		IntakeEventsTotal,
	)
}
