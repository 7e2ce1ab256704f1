// metrics.go — Prometheus HTTP метрики chai-api.
// Регистрирует метрики: chai_http_requests_total, chai_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики chai-api
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chai_http_requests_total",
			Help: "Общее количество HTTP-запросов к chai-api",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chai_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к chai-api в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (имена таблиц, UUID и строки поиска — в шаблоны)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath заменяет динамические сегменты пути шаблонами
// для предотвращения взрывного роста кардинальности метрик.
// /tables/projects/a1b2c3d4-... → /tables/{table}/{id}
// /project/search/left-pad → /project/search/{name}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/heartbeat",
		"/openapi.yaml", "/tables", "/project/batch", "/leaderboard":
		return path
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case segments[0] == "tables" && len(segments) == 2:
		return "/tables/{table}"
	case segments[0] == "tables" && len(segments) == 3:
		return "/tables/{table}/{id}"
	case segments[0] == "project" && len(segments) == 3 && segments[1] == "search":
		return "/project/search/{name}"
	case segments[0] == "project" && len(segments) == 2:
		return "/project/{id}"
	}

	// Неизвестные маршруты (404) — в один лейбл
	return "other"
}
