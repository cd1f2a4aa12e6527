package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/metrics"
)

// CacheTTLs configures per-entity expirations for the cache-aside layer.
type CacheTTLs struct {
	Listing  time.Duration
	Fee      time.Duration
	Currency time.Duration
}

// CachedRepository is a cache-aside wrapper for the hot read paths: listing
// lookups, the fee rate and the currency allow-list. Mutations invalidate the
// affected keys; transactional work always runs against the uncached
// repository so the exchange protocol never observes stale state.
type CachedRepository struct {
	Repository
	cache *gocache.Cache
	ttls  CacheTTLs
}

var _ Repository = (*CachedRepository)(nil)

// NewCachedRepository wraps base with an in-memory cache.
func NewCachedRepository(base Repository, ttls CacheTTLs) *CachedRepository {
	return &CachedRepository{
		Repository: base,
		cache:      gocache.New(ttls.Listing, 2*ttls.Listing),
		ttls:       ttls,
	}
}

func listingKey(collection domain.Address, tokenID decimal.Decimal) string {
	return fmt.Sprintf("listing:%s:%s", collection, tokenID.String())
}

func currencyKey(currency domain.Address) string {
	return "currency:" + currency.String()
}

const feeRateKey = "fee:rate"

// GetListing serves repeated lookups of the same key from memory. A cached
// domain.ErrNotFound is represented by a nil entry so absent listings do not
// hammer the database either.
func (r *CachedRepository) GetListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (*domain.Listing, error) {
	key := listingKey(collection, tokenID)
	if cached, found := r.cache.Get(key); found {
		metrics.CacheHits.WithLabelValues("listing").Inc()
		if cached == nil {
			return nil, domain.ErrNotFound
		}
		return cached.(*domain.Listing), nil
	}
	metrics.CacheMisses.WithLabelValues("listing").Inc()

	listing, err := r.Repository.GetListing(ctx, collection, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.cache.Set(key, nil, r.ttls.Listing)
		}
		return nil, err
	}
	r.cache.Set(key, listing, r.ttls.Listing)
	return listing, nil
}

// GetFeeRate caches the fee configuration singleton.
func (r *CachedRepository) GetFeeRate(ctx context.Context) (int32, error) {
	if cached, found := r.cache.Get(feeRateKey); found {
		metrics.CacheHits.WithLabelValues("fee").Inc()
		return cached.(int32), nil
	}
	metrics.CacheMisses.WithLabelValues("fee").Inc()

	rate, err := r.Repository.GetFeeRate(ctx)
	if err != nil {
		return 0, err
	}
	r.cache.Set(feeRateKey, rate, r.ttls.Fee)
	return rate, nil
}

// IsCurrencyAllowed caches allow-list membership per currency.
func (r *CachedRepository) IsCurrencyAllowed(ctx context.Context, currency domain.Address) (bool, error) {
	key := currencyKey(currency)
	if cached, found := r.cache.Get(key); found {
		metrics.CacheHits.WithLabelValues("currency").Inc()
		return cached.(bool), nil
	}
	metrics.CacheMisses.WithLabelValues("currency").Inc()

	allowed, err := r.Repository.IsCurrencyAllowed(ctx, currency)
	if err != nil {
		return false, err
	}
	r.cache.Set(key, allowed, r.ttls.Currency)
	return allowed, nil
}

// CreateListing invalidates the key it writes.
func (r *CachedRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	err := r.Repository.CreateListing(ctx, listing)
	if err == nil {
		r.cache.Delete(listingKey(listing.Collection, listing.TokenID))
	}
	return err
}

// UpdateListingPrice invalidates the key it writes.
func (r *CachedRepository) UpdateListingPrice(ctx context.Context, collection domain.Address, tokenID, price decimal.Decimal) error {
	err := r.Repository.UpdateListingPrice(ctx, collection, tokenID, price)
	if err == nil {
		r.cache.Delete(listingKey(collection, tokenID))
	}
	return err
}

// DeleteListing invalidates the key it clears.
func (r *CachedRepository) DeleteListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) error {
	err := r.Repository.DeleteListing(ctx, collection, tokenID)
	if err == nil {
		r.cache.Delete(listingKey(collection, tokenID))
	}
	return err
}

// SetFeeRate invalidates the cached rate.
func (r *CachedRepository) SetFeeRate(ctx context.Context, rateBps int32) error {
	err := r.Repository.SetFeeRate(ctx, rateBps)
	if err == nil {
		r.cache.Delete(feeRateKey)
	}
	return err
}

// SetCurrencyAllowed invalidates the affected allow-list entry.
func (r *CachedRepository) SetCurrencyAllowed(ctx context.Context, currency domain.Address, allowed bool) error {
	err := r.Repository.SetCurrencyAllowed(ctx, currency, allowed)
	if err == nil {
		r.cache.Delete(currencyKey(currency))
	}
	return err
}

// WithTransaction runs fn against the uncached transactional repository and
// flushes the cache after a successful commit. A transaction can touch any
// combination of listings, accruals and configuration, so invalidation is
// wholesale rather than per key.
func (r *CachedRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	for _, entity := range []string{"listing", "fee", "currency"} {
		metrics.CacheSkips.WithLabelValues(entity).Inc()
	}
	err := r.Repository.WithTransaction(ctx, fn)
	if err == nil {
		r.cache.Flush()
	}
	return err
}
