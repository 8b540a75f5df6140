package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts landed-cost quote requests by outcome.
	QuotesTotal *prometheus.CounterVec
	// DutyExemptTotal counts computed quotes by duty exemption decision.
	DutyExemptTotal *prometheus.CounterVec
	// QuoteGrandTotal observes computed grand totals in local currency units.
	QuoteGrandTotal prometheus.Histogram
	// FXLookupsTotal counts exchange-rate resolutions by source and result.
	FXLookupsTotal *prometheus.CounterVec
	// FXCacheTotal counts FX cache hits and misses.
	FXCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of landed-cost quote requests by outcome.",
		}, []string{"result"})
		DutyExemptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_duty_decisions_total",
			Help:      "Count of computed quotes by customs duty decision.",
		}, []string{"decision"})
		QuoteGrandTotal = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_grand_total",
			Help:      "Distribution of computed grand totals in local currency units.",
			Buckets:   []float64{1000, 5000, 10000, 20000, 50000, 100000, 250000},
		})
		FXLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_lookups_total",
			Help:      "Count of exchange-rate lookups by source and result.",
		}, []string{"source", "result"})
		FXCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_cache_total",
			Help:      "Count of exchange-rate cache lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, QuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuotesTotal = v
			}
		})
		mustRegisterCollector(reg, DutyExemptTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DutyExemptTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteGrandTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteGrandTotal = v
			}
		})
		mustRegisterCollector(reg, FXLookupsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FXLookupsTotal = v
			}
		})
		mustRegisterCollector(reg, FXCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FXCacheTotal = v
			}
		})
	})
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
