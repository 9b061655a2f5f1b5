package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// NotificationsSentTotal - исходящие уведомления по типу и исходу доставки
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Общее количество исходящих уведомлений",
		},
		[]string{"type", "status"},
	)

	// SweepDuration - длительность прохода фоновой задачи
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Длительность прохода фоновой задачи в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

// PrometheusMiddleware собирает метрики для HTTP запросов
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// TrackNotification учитывает исход доставки одного уведомления
func TrackNotification(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	NotificationsSentTotal.WithLabelValues(kind, status).Inc()
}

// ObserveSweep записывает длительность одного прохода фоновой задачи
func ObserveSweep(job string, d time.Duration) {
	SweepDuration.WithLabelValues(job).Observe(d.Seconds())
}
