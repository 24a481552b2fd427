package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartValidationTotal counts cart validation verdicts by result and rejection code.
	CartValidationTotal *prometheus.CounterVec
	// CartValidationDuration records end-to-end validation latency in seconds.
	CartValidationDuration prometheus.Histogram
	// CartUnverifiableLines counts product lines that could not be resolved in the catalog.
	CartUnverifiableLines prometheus.Counter
	// CartValidationAnomalies counts soft anomalies attached to verdicts.
	CartValidationAnomalies *prometheus.CounterVec
	// StoreCacheLookups counts read-through cache outcomes per store.
	StoreCacheLookups *prometheus.CounterVec
	// ReviewTasksTotal counts unverifiable-line review task outcomes.
	ReviewTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartValidationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_validation_total",
			Help:      "Count of cart validation verdicts.",
		}, []string{"result", "code"})
		CartValidationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_validation_duration_seconds",
			Help:      "Cart validation latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		})
		CartUnverifiableLines = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_unverifiable_lines_total",
			Help:      "Product lines accepted at their declared price because the catalog had no match.",
		})
		CartValidationAnomalies = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_validation_anomalies_total",
			Help:      "Soft anomalies observed during cart validation.",
		}, []string{"kind"})
		StoreCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_cache_lookups_total",
			Help:      "Read-through cache lookups by store and outcome.",
		}, []string{"store", "result"})
		ReviewTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_tasks_total",
			Help:      "Unverifiable-line review tasks by stage and outcome.",
		}, []string{"stage", "result"})

		mustRegisterCollector(reg, CartValidationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartValidationTotal = v
			}
		})
		mustRegisterCollector(reg, CartValidationDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CartValidationDuration = v
			}
		})
		mustRegisterCollector(reg, CartUnverifiableLines, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartUnverifiableLines = v
			}
		})
		mustRegisterCollector(reg, CartValidationAnomalies, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartValidationAnomalies = v
			}
		})
		mustRegisterCollector(reg, StoreCacheLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StoreCacheLookups = v
			}
		})
		mustRegisterCollector(reg, ReviewTasksTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReviewTasksTotal = v
			}
		})
	})
}

// ObserveCacheLookup records a cache hit or miss when domain metrics are registered.
func ObserveCacheLookup(store string, hit bool) {
	if StoreCacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	StoreCacheLookups.WithLabelValues(store, result).Inc()
}

// ObserveReviewTask records a review task outcome when domain metrics are registered.
func ObserveReviewTask(stage string, err error) {
	if ReviewTasksTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	ReviewTasksTotal.WithLabelValues(stage, result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
