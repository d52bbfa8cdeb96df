package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	checkoutsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_started_total",
			Help: "Total number of checkout sessions created",
		},
		[]string{"bundle"},
	)

	purchasesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_completed_total",
			Help: "Total number of purchases marked completed",
		},
		[]string{"bundle"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of payment webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	emailsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_emails_total",
			Help: "Total number of confirmation email dispatch attempts",
		},
		[]string{"status"},
	)

	downloadsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloads_issued_total",
			Help: "Total number of presigned download URLs issued",
		},
		[]string{"bundle"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(checkoutsStartedTotal)
	prometheus.MustRegister(purchasesCompletedTotal)
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(emailsSentTotal)
	prometheus.MustRegister(downloadsIssuedTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCheckoutStarted(bundle string) {
	checkoutsStartedTotal.WithLabelValues(bundle).Inc()
}

func RecordPurchaseCompleted(bundle string) {
	purchasesCompletedTotal.WithLabelValues(bundle).Inc()
}

func RecordWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(outcome).Inc()
}

func RecordEmailSent(status string) {
	emailsSentTotal.WithLabelValues(status).Inc()
}

func RecordDownloadIssued(bundle string) {
	downloadsIssuedTotal.WithLabelValues(bundle).Inc()
}
