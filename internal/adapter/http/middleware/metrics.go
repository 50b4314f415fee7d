package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
)

// MetricsMiddleware records HTTP request counts and latencies.
type MetricsMiddleware struct {
	metrics *metrics.Metrics
}

// NewMetricsMiddleware creates a new MetricsMiddleware.
func NewMetricsMiddleware(m *metrics.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: m}
}

// Wrap wraps an http.Handler with request metrics.
func (m *MetricsMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)

		m.metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath replaces resource IDs with placeholders to keep label cardinality bounded.
// /api/v1/transactions/01ABC/entries/01DEF -> /api/v1/transactions/:id/entries/:entry_id
func normalizePath(path string) string {
	const prefix = "/api/v1/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) < 2 || parts[1] == "" {
		return path
	}

	switch parts[0] {
	case "accounts", "transactions":
		parts[1] = ":id"
	default:
		return path
	}

	if parts[0] == "transactions" && len(parts) >= 4 && parts[2] == "entries" && parts[3] != "" {
		parts[3] = ":entry_id"
	}

	return prefix + strings.Join(parts, "/")
}
