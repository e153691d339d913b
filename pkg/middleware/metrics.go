// Package middleware holds the HTTP middleware of the search service: request
// ids, CORS, Prometheus metrics, per-client rate limiting and timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-keyword-search/pkg/metrics"
)

// Metrics records request count, latency and in-flight requests. Paths are
// reduced to route templates so label cardinality stays bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path, sw.status)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// paramRoutes are routes whose last segment is a parameter.
var paramRoutes = []string{"/api/v1/terms/", "/api/v1/documents/"}

// routeLabel maps a request path to its route template. Paths that matched
// no route are reported as "unmatched".
func routeLabel(path string, status int) string {
	for _, prefix := range paramRoutes {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + ":param"
		}
	}
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		return "unmatched"
	}
	return path
}
