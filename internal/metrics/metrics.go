// Package metrics registers the marketplace prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ListingsCreated counts successful listAsset operations.
	ListingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "listings",
		Name:      "created_total",
		Help:      "Total number of listings created",
	})

	// ListingsCanceled counts successful cancelListing operations.
	ListingsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "listings",
		Name:      "canceled_total",
		Help:      "Total number of listings canceled",
	})

	// PriceUpdates counts successful updatePrice operations.
	PriceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "listings",
		Name:      "price_updates_total",
		Help:      "Total number of listing price updates",
	})

	// Sales counts completed purchases by settlement kind (native, token).
	Sales = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "exchange",
		Name:      "sales_total",
		Help:      "Total number of completed sales",
	}, []string{"settlement"})

	// FeeWithdrawals counts completed fee withdrawals by settlement kind.
	FeeWithdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "fees",
		Name:      "withdrawals_total",
		Help:      "Total number of fee withdrawals",
	}, []string{"settlement"})

	// OperationFailures counts failed operations by error code.
	OperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "operations",
		Name:      "failures_total",
		Help:      "Total number of failed operations by error code",
	}, []string{"operation", "code"})

	// CacheHits counts repository cache hits per entity.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "cache",
		Name:      "hit_total",
		Help:      "Total number of cache hits",
	}, []string{"entity"})

	// CacheMisses counts repository cache misses per entity.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "cache",
		Name:      "miss_total",
		Help:      "Total number of cache misses",
	}, []string{"entity"})

	// CacheSkips counts reads that bypassed the cache (transactional reads).
	CacheSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketd",
		Subsystem: "cache",
		Name:      "skip_total",
		Help:      "Total number of cache skip operations",
	}, []string{"entity"})
)

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
