package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestsTotal, httpRequestSeconds, adminAuthTotal) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Admin API requests by route pattern, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_seconds",
			Help:    "Admin API latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	adminAuthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_auth_total",
			Help: "Tracks attempts to use the admin API.",
		},
		[]string{"status"}, // 'authorized', 'unauthorized', 'forbidden'
	)
)

func ObserveHTTP(route, method string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	httpRequestSeconds.WithLabelValues(route).Observe(d.Seconds())
}

func IncAdminAuth(status string) {
	adminAuthTotal.WithLabelValues(norm(status)).Inc()
}
