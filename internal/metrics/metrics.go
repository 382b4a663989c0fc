package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "supportdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	// Tickets
	ThreadsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "tickets",
			Name:      "threads_created_total",
			Help:      "Total support threads opened by users",
		},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "tickets",
			Name:      "messages_total",
			Help:      "Total support messages persisted, by sender",
		},
		[]string{"sender"},
	)

	AdminActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "tickets",
			Name:      "admin_actions_total",
			Help:      "Total privileged actions, by audit action",
		},
		[]string{"action"},
	)

	ThreadsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "tickets",
			Name:      "threads_purged_total",
			Help:      "Closed threads removed by the retention job",
		},
	)

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportdesk",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Email notifications, by result (sent, failed, dropped)",
		},
		[]string{"result"},
	)

	NotificationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "supportdesk",
			Subsystem: "notify",
			Name:      "delivery_seconds",
			Help:      "Time from enqueue to delivery attempt completion",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "supportdesk",
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Emails waiting in the dispatch queue",
		},
	)
)
