// Package metrics registers the service's Prometheus collectors.
//
// Collectors live on the default registry and are exposed by GET /metrics.
// HTTP metrics use the gin route template (c.FullPath) as the path label so
// key strings in URLs do not blow up label cardinality.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification outcomes
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	KeysAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keystock_keys_available",
		Help: "Keys that are neither in use nor invalid, as of the last low-stock evaluation.",
	})

	KeyOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keystock_key_operations_total",
			Help: "Key lifecycle operations, by operation.",
		},
		[]string{"operation"},
	)

	LowStockWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keystock_low_stock_warnings_total",
		Help: "Threshold crossings that produced a low-stock warning.",
	})

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keystock_notifications_total",
			Help: "Outbound notification attempts, by outcome (sent, failed, dropped).",
		},
		[]string{"outcome"},
	)
)
