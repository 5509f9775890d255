package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version, commit and storage driver.",
	},
	[]string{"version", "commit", "driver"},
)

func SetBuildInfo(version, commit, driver string) {
	buildInfo.WithLabelValues(version, commit, norm(driver)).Set(1)
}
