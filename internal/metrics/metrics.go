// Package metrics содержит Prometheus метрики движка турнирных вопросов.
// Метрики регистрируются один раз при загрузке пакета.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bible_tournament"

var (
	// LifecycleTransitions количество переходов жизненного цикла
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of question lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	// RejectedTransitions количество отклоненных переходов
	RejectedTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "rejected_transitions_total",
			Help:      "Total number of rejected lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	// BonusJobs количество завершенных задач бонусного пайплайна по итоговому статусу
	BonusJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bonus",
			Name:      "jobs_total",
			Help:      "Total number of bonus pipeline jobs by outcome",
		},
		[]string{"outcome"},
	)

	// BonusJobDuration длительность задачи переформулирования
	BonusJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bonus",
			Name:      "job_duration_seconds",
			Help:      "Bonus retwist job duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// QuizAttempts количество отправленных попыток по результату
	QuizAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qualification",
			Name:      "attempts_total",
			Help:      "Total number of submitted qualification attempts",
		},
		[]string{"result"},
	)

	// PracticeReleases количество вопросов, возвращенных в практику
	PracticeReleases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "practice_released_questions_total",
			Help:      "Total number of questions released back to practice",
		},
		[]string{"mode"},
	)

	// WebsocketConnections количество открытых соединений прогресса
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Number of open bonus progress websocket connections",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// GinMiddleware собирает метрики HTTP запросов по шаблону маршрута
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
