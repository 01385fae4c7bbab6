package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesCommitted counts persisted sale records by resulting status.
	// Each sale is counted once, at commit time.
	SalesCommitted *prometheus.CounterVec
	// SalesApproved counts pending sales moved to completed.
	SalesApproved prometheus.Counter
	// SalesCancelled counts sale cancellations.
	SalesCancelled prometheus.Counter
	// StockRejections counts checkouts refused for insufficient stock.
	StockRejections prometheus.Counter
	// ProductsImported counts products written through bulk import.
	ProductsImported prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors. Callers that skip it leave the counters nil,
// so services guard every use.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_committed_total",
			Help:      "Count of committed sale records by status.",
		}, []string{"status"})
		SalesApproved = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_approved_total",
			Help:      "Count of pending sales approved to completed.",
		})
		SalesCancelled = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_cancelled_total",
			Help:      "Count of cancelled sale records.",
		})
		StockRejections = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Count of checkouts rejected for insufficient stock.",
		})
		ProductsImported = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_imported_total",
			Help:      "Count of products written through bulk import.",
		})

		mustRegisterCollector(reg, SalesCommitted, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesCommitted = v
			}
		})
		mustRegisterCollector(reg, SalesApproved, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SalesApproved = v
			}
		})
		mustRegisterCollector(reg, SalesCancelled, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SalesCancelled = v
			}
		})
		mustRegisterCollector(reg, StockRejections, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				StockRejections = v
			}
		})
		mustRegisterCollector(reg, ProductsImported, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ProductsImported = v
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
