package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_registered_total",
		Help: "Total number of verification OTPs issued for registrations",
	})

	UsersVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_verified_total",
		Help: "Total number of successfully verified emails",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	AccountsBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_blocked_total",
		Help: "Accounts blocked, by the flow that exhausted its attempts",
	}, []string{"flow"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	PaymentIntentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_intent_latency_seconds",
		Help:    "Latency of payment intent creation",
		Buckets: prometheus.DefBuckets,
	})

	PaymentsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_paid_total",
		Help: "Total number of payments confirmed by webhook",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment webhook events by result",
	}, []string{"result"})

	StockShortfallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_shortfalls_total",
		Help: "Paid order items whose stock could not be decremented",
	})

	AIFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_search_fallbacks_total",
		Help: "AI searches that fell back to the keyword pre-filter",
	})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Outbound emails by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
