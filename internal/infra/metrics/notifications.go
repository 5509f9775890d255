package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(emailsTotal) }

var emailsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Outgoing e-mails by kind and result.",
	},
	[]string{"kind", "result"}, // kind: expiring, assigned, frozen, ...
)

func IncEmail(kind string, err error) {
	emailsTotal.WithLabelValues(norm(kind), result(err)).Inc()
}
