package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker collectors, labelled by guarded store.
var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "store_breaker_state",
		Help: "Store breaker position (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_breaker_transitions_total",
		Help: "Store breaker state changes.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_breaker_opened_total",
		Help: "Times a store breaker tripped open.",
	}, []string{"target"})
)
