package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "http_requests_total",
			Help:      "HTTP requests by server, method, route and status",
		},
		[]string{"server", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forwarder",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by server and route",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"server", "method", "route"},
	)

	httpResponseBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "http_response_bytes_total",
			Help:      "Response body bytes written by server and route",
		},
		[]string{"server", "route"},
	)
)

// Metrics returns a middleware that records request metrics. server distinguishes the
// ops listener of the forwarder from the history API.
func Metrics(server string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := strconv.Itoa(statusOf(ww))

			httpRequestsTotal.WithLabelValues(server, r.Method, route, status).Inc()
			httpRequestDuration.WithLabelValues(server, r.Method, route).Observe(time.Since(start).Seconds())
			httpResponseBytes.WithLabelValues(server, route).Add(float64(ww.BytesWritten()))
		})
	}
}

// routePattern labels a request by its matched chi route, e.g. /api/v1/forwards/{id},
// so path parameters do not create new series. Unmatched requests share one label.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// statusOf treats a handler that never called WriteHeader as 200
func statusOf(ww chimiddleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
