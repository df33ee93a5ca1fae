package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_completed_total",
		Help: "Total number of committed checkouts",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	SalesDiscountedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_discounted_total",
		Help: "Total number of checkouts that received the loyalty discount",
	})

	SaleNetAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_net_amount",
		Help:    "Net total of committed sales",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	CheckoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Latency of the checkout transaction",
		Buckets: prometheus.DefBuckets,
	})

	StockLockLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_lock_latency_seconds",
		Help:    "Time spent acquiring stock row locks",
		Buckets: prometheus.DefBuckets,
	})

	CheckoutRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_retries_total",
		Help: "Total number of retried checkout attempts",
	})

	PaymentsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_confirmed_total",
		Help: "Total number of pending sales confirmed",
	})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Total number of outbox events relayed to the broker",
	})

	OutboxPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failed_total",
		Help: "Total number of outbox relay failures",
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	StockCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_cache_requests_total",
		Help: "Stock cache lookups by result",
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
