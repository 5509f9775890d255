package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolStats, storeOpSeconds) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	storeOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_store_op_seconds",
			Help:    "Latency of document store operations by backend, operation and result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op", "result"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

// ObserveStoreOp is deferred at the top of each store call:
//
//	defer metrics.ObserveStoreOp("postgres", "get", time.Now(), &err)
func ObserveStoreOp(backend, op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	storeOpSeconds.WithLabelValues(norm(backend), norm(op), result(err)).Observe(time.Since(start).Seconds())
}
