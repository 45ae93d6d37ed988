package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the companion's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cribb_companion",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight UI requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cribb_companion",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of UI requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cribb_companion",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of UI requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	notificationFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cribb_companion",
			Subsystem: "notifications",
			Name:      "fetches_total",
			Help:      "Notification fetches by outcome (fetched, coalesced, skipped).",
		},
		[]string{"outcome"},
	)

	notificationFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cribb_companion",
			Subsystem: "notifications",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of notification fetches that reached the backend.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	notificationCategoryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cribb_companion",
			Subsystem: "notifications",
			Name:      "category_failures_total",
			Help:      "Category requests that failed and were replaced by an empty list.",
		},
		[]string{"category"},
	)

	notificationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cribb_companion",
			Subsystem: "notifications",
			Name:      "actions_total",
			Help:      "Mark-read and delete actions by result.",
		},
		[]string{"action", "success"},
	)

	unreadNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cribb_companion",
			Subsystem: "notifications",
			Name:      "unread",
			Help:      "Unread notifications in the current feed.",
		},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cribb_companion",
			Subsystem: "transfer",
			Name:      "confirmations_total",
			Help:      "Cart to pantry transfer confirmations by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		notificationFetches,
		notificationFetchDuration,
		notificationCategoryFailures,
		notificationActions,
		unreadNotifications,
		transfers,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordNotificationFetch(outcome string, duration time.Duration) {
	notificationFetches.WithLabelValues(outcome).Inc()
	if duration > 0 {
		notificationFetchDuration.Observe(duration.Seconds())
	}
}

func RecordCategoryFailure(category string) {
	notificationCategoryFailures.WithLabelValues(category).Inc()
}

func RecordNotificationAction(action string, success bool) {
	notificationActions.WithLabelValues(action, strconv.FormatBool(success)).Inc()
}

func SetUnreadNotifications(count int) {
	unreadNotifications.Set(float64(count))
}

func RecordTransfer(outcome string) {
	transfers.WithLabelValues(outcome).Inc()
}
