package metrics

import (
	"sports-tips-subscription/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsTotal,
		subscriptionOpsTotal,
		malformedDocumentsTotal,
		revenueUSD,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions invalidated by the expiry sweep.",
		},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by derived state.",
		},
		[]string{"state"}, // ACTIVE, EXPIRING, FROZEN, EXPIRED
	)

	subscriptionOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_operations_total",
			Help: "Lifecycle operations by kind and result.",
		},
		[]string{"op", "result"},
	)

	malformedDocumentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "malformed_documents_skipped_total",
			Help: "Subscription documents skipped because they failed decoding.",
		},
	)

	revenueUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriptions_revenue_usd",
			Help: "Last computed total of discounted subscription prices in USD.",
		},
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func SetSubscriptionsTotal(counts map[model.SubscriptionState]int) {
	for _, state := range model.AllSubscriptionStates {
		subscriptionsTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func IncSubscriptionOp(op string, err error) {
	subscriptionOpsTotal.WithLabelValues(norm(op), result(err)).Inc()
}

func AddMalformedSkipped(n int) {
	if n > 0 {
		malformedDocumentsTotal.Add(float64(n))
	}
}

func SetRevenueUSD(v float64) { revenueUSD.Set(v) }
