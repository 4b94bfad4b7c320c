package verifier

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposed by the verification service.
var (
	verificationsStartedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of verification attempts started",
			Name:      "verifications_started_total",
			Namespace: "walletd",
		},
	)
	verificationsCompletedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of verification attempts completed",
			Name:      "verifications_completed_total",
			Namespace: "walletd",
		},
	)
	verifyPublishFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of user.verified publishes dropped after retries",
			Name:      "verification_publish_failures_total",
			Namespace: "walletd",
		},
	)
)

func init() {
	prometheus.MustRegister(
		verificationsStartedCounter,
		verificationsCompletedCounter,
		verifyPublishFailuresCounter,
	)
}
