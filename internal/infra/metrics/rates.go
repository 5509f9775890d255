package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateRefreshTotal, rateTableSize, rateLastSuccess) }

var (
	rateRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_rate_refresh_total",
			Help: "Exchange-rate refresh attempts by source and result.",
		},
		[]string{"source", "result"}, // source: upstream|snapshot
	)

	rateTableSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exchange_rate_currencies",
			Help: "Number of currencies in the cached rate table.",
		},
	)

	rateLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exchange_rate_last_success_timestamp_seconds",
			Help: "Unix time of the last successful rate refresh.",
		},
	)
)

func IncRateRefresh(source string, err error) {
	rateRefreshTotal.WithLabelValues(norm(source), result(err)).Inc()
}

func SetRateTable(size int, unixSeconds int64) {
	rateTableSize.Set(float64(size))
	rateLastSuccess.Set(float64(unixSeconds))
}
