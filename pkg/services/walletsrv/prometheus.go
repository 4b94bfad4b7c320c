package walletsrv

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposed by the wallet service.
var (
	walletsCreatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of wallets provisioned",
			Name:      "wallets_created_total",
			Namespace: "walletd",
		},
		[]string{"network"},
	)
	eventsProcessedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of user.verified events processed",
			Name:      "user_verified_events_total",
			Namespace: "walletd",
		},
	)
	duplicateEventsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of duplicate user.verified events skipped",
			Name:      "duplicate_events_total",
			Namespace: "walletd",
		},
	)
	eventFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of user.verified events whose handling failed",
			Name:      "event_failures_total",
			Namespace: "walletd",
		},
	)
	publishFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of wallet.created publishes dropped after retries",
			Name:      "wallet_publish_failures_total",
			Namespace: "walletd",
		},
	)
)

func init() {
	prometheus.MustRegister(
		walletsCreatedCounter,
		eventsProcessedCounter,
		duplicateEventsCounter,
		eventFailuresCounter,
		publishFailuresCounter,
	)
}
