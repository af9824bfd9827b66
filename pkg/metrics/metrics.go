package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricealert_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// AlertsProcessed counts alerts examined by the evaluation pass.
	AlertsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricealert_alerts_processed_total",
			Help: "Total number of alerts examined by the evaluation pass",
		},
	)

	// NotificationsSent counts dispatched notifications by channel and result.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricealert_notifications_sent_total",
			Help: "Total number of price-drop notifications dispatched",
		},
		[]string{"channel", "result"},
	)

	// ScrapeAttempts counts scraping attempts by result (success|failure).
	ScrapeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricealert_scrape_attempts_total",
			Help: "Total number of product page scrape attempts",
		},
		[]string{"result"},
	)

	// VerificationEmails counts verification emails by result (sent|skipped|failure).
	VerificationEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricealert_verification_emails_total",
			Help: "Total number of verification email attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricealert_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
