// metrics.go — Prometheus HTTP метрики.
// Регистрирует метрики: qe_http_requests_total, qe_http_request_duration_seconds.
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

var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qe_http_requests_total",
			Help: "Общее количество HTTP-запросов к Query Editor",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qe_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Query Editor в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

const (
	queriesPrefix = "/api/queries/"
	tablesPrefix  = "/api/schema/tables/"
)

// normalizePath заменяет идентификаторы в пути шаблонами.
// /api/queries/42/favorite → /api/queries/{id}/favorite
// /api/schema/tables/users → /api/schema/tables/{name}
// Неизвестные пути схлопываются в "other".
func normalizePath(path string) string {
	switch path {
	case "/", "/health/live", "/health/ready", "/metrics", "/api/openapi.json",
		"/api/auth/register", "/api/auth/login", "/api/auth/me",
		"/api/queries/execute", "/api/queries/history", "/api/queries/favorites",
		"/api/schema/tables":
		return path
	}

	if rest, ok := strings.CutPrefix(path, queriesPrefix); ok {
		id, suffix, _ := strings.Cut(rest, "/")
		if !isDigits(id) {
			return "other"
		}
		switch suffix {
		case "":
			return "/api/queries/{id}"
		case "favorite", "favorite/name", "download":
			return "/api/queries/{id}/" + suffix
		}
		return "other"
	}

	if rest, ok := strings.CutPrefix(path, tablesPrefix); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/schema/tables/{name}"
	}

	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
