package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poke outcome labels. "committed" is the only outcome that mutates state;
// every rejection carries the name of the failed precondition.
const (
	OutcomeCommitted     = "committed"
	OutcomePaused        = "paused"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeNotConfigured = "pool_not_configured"
	OutcomeInvalidRatio  = "invalid_ratio"
	OutcomeCooldown      = "cooldown_not_elapsed"
	OutcomeSinkFailure   = "fee_sink_failure"
	OutcomeStoreFailure  = "store_failure"
)

var (
	PokesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dfc_pokes_total",
		Help: "Pokes processed, by outcome.",
	}, []string{"outcome"})

	PoolFee = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dfc_pool_fee",
		Help: "Current fee per pool, in fee units.",
	}, []string{"pool_id"})

	PoolTargetRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dfc_pool_target_ratio",
		Help: "Current EMA target ratio per pool.",
	}, []string{"pool_id"})

	FeeSinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dfc_fee_sink_failures_total",
		Help: "Fee pushes rejected by the pool engine.",
	})
)
