package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/chain"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/metrics"
	"github.com/tokenmart/marketd/internal/repository"
)

// ListingManager owns the listing lifecycle: creation, in-place price
// mutation and cancelation. Ownership and approval are verified against the
// live asset registry at creation time only; sale-time validity is the
// ExchangeManager's job, because assets can change hands out-of-band between
// listing and sale.
type ListingManager struct {
	repo      repository.Repository
	assets    chain.AssetRegistry
	guard     *Guard
	publisher *EventPublisher
	operator  domain.Address
	logger    zerolog.Logger
}

// NewListingManager creates a new ListingManager instance. operator is the
// marketplace identity that must hold transfer approval for listed assets.
func NewListingManager(
	repo repository.Repository,
	assets chain.AssetRegistry,
	guard *Guard,
	publisher *EventPublisher,
	operator domain.Address,
	logger zerolog.Logger,
) *ListingManager {
	return &ListingManager{
		repo:      repo,
		assets:    assets,
		guard:     guard,
		publisher: publisher,
		operator:  operator,
		logger:    logger,
	}
}

// ListAsset creates a fixed-price listing for an asset the caller owns.
func (m *ListingManager) ListAsset(ctx context.Context, caller, collection domain.Address, tokenID, price decimal.Decimal, currency domain.Address) (*domain.Listing, error) {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := validateTokenID(tokenID); err != nil {
		return nil, err
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	var (
		listing *domain.Listing
		event   *domain.Event
	)
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		if _, err := repo.GetListing(ctx, collection, tokenID); err == nil {
			return domain.ErrAlreadyListed
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if !currency.IsNative() {
			allowed, err := repo.IsCurrencyAllowed(ctx, currency)
			if err != nil {
				return err
			}
			if !allowed {
				return domain.ErrCurrencyNotAllowed
			}
		}

		owner, err := m.assets.OwnerOf(ctx, collection, tokenID)
		if err != nil {
			return fmt.Errorf("query asset owner: %w", err)
		}
		if owner != caller {
			return domain.ErrNotOwner
		}

		approved, err := hasTransferApproval(ctx, m.assets, collection, owner, m.operator, tokenID)
		if err != nil {
			return err
		}
		if !approved {
			return domain.ErrNotApproved
		}

		listing = &domain.Listing{
			Seller:     caller,
			Collection: collection,
			TokenID:    tokenID,
			Price:      price,
			Currency:   currency,
		}
		if err := repo.CreateListing(ctx, listing); err != nil {
			return err
		}

		event, err = domain.NewEvent(domain.EventListed, domain.ListedPayload{
			Seller:     caller,
			Collection: collection,
			TokenID:    tokenID,
			Price:      price,
			Currency:   currency,
		}, caller, collection, currency)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("list_asset", err)
		return nil, err
	}

	metrics.ListingsCreated.Inc()
	m.publisher.Publish(event)
	m.logger.Info().
		Str("seller", caller.String()).
		Str("collection", collection.String()).
		Str("token_id", tokenID.String()).
		Str("price", price.String()).
		Str("currency", currency.String()).
		Msg("Asset listed")
	return listing, nil
}

// CancelListing clears the caller's own listing. No ownership re-check:
// canceling a stale listing after the asset moved elsewhere is always
// allowed.
func (m *ListingManager) CancelListing(ctx context.Context, caller, collection domain.Address, tokenID decimal.Decimal) error {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	var event *domain.Event
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		listing, err := repo.GetListing(ctx, collection, tokenID)
		if err != nil {
			return err
		}
		if listing.Seller != caller {
			return domain.ErrNotSeller
		}

		if err := repo.DeleteListing(ctx, collection, tokenID); err != nil {
			return err
		}

		event, err = domain.NewEvent(domain.EventCanceled, domain.CanceledPayload{
			Seller:     caller,
			Collection: collection,
			TokenID:    tokenID,
		}, caller, collection)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("cancel_listing", err)
		return err
	}

	metrics.ListingsCanceled.Inc()
	m.publisher.Publish(event)
	m.logger.Info().
		Str("seller", caller.String()).
		Str("collection", collection.String()).
		Str("token_id", tokenID.String()).
		Msg("Listing canceled")
	return nil
}

// UpdatePrice mutates the listing price in place. The caller must still own
// the asset: a seller who has transferred it elsewhere cannot resurrect a
// stale listing at a new price.
func (m *ListingManager) UpdatePrice(ctx context.Context, caller, collection domain.Address, tokenID, newPrice decimal.Decimal) (*domain.Listing, error) {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := validatePrice(newPrice); err != nil {
		return nil, err
	}

	var (
		listing *domain.Listing
		event   *domain.Event
	)
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		listing, err = repo.GetListing(ctx, collection, tokenID)
		if err != nil {
			return err
		}
		if listing.Seller != caller {
			return domain.ErrNotSeller
		}

		owner, err := m.assets.OwnerOf(ctx, collection, tokenID)
		if err != nil {
			return fmt.Errorf("query asset owner: %w", err)
		}
		if owner != caller {
			return domain.ErrNotOwner
		}

		if err := repo.UpdateListingPrice(ctx, collection, tokenID, newPrice); err != nil {
			return err
		}
		listing.Price = newPrice

		event, err = domain.NewEvent(domain.EventListed, domain.ListedPayload{
			Seller:     listing.Seller,
			Collection: collection,
			TokenID:    tokenID,
			Price:      newPrice,
			Currency:   listing.Currency,
		}, listing.Seller, collection, listing.Currency)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("update_price", err)
		return nil, err
	}

	metrics.PriceUpdates.Inc()
	m.publisher.Publish(event)
	m.logger.Info().
		Str("seller", caller.String()).
		Str("collection", collection.String()).
		Str("token_id", tokenID.String()).
		Str("price", newPrice.String()).
		Msg("Listing price updated")
	return listing, nil
}

// GetListing returns the active listing for an asset, or domain.ErrNotFound.
func (m *ListingManager) GetListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (*domain.Listing, error) {
	return m.repo.GetListing(ctx, collection, tokenID)
}

// ListListings returns active listings matching the filter.
func (m *ListingManager) ListListings(ctx context.Context, filter *repository.ListingFilter) ([]*domain.Listing, error) {
	return m.repo.ListListings(ctx, filter)
}

// IsListingValid re-runs the sale-time checks without mutating: the listing
// exists, the seller still owns the asset and the marketplace approval still
// holds. An absent listing is invalid, not an error.
func (m *ListingManager) IsListingValid(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (bool, error) {
	listing, err := m.repo.GetListing(ctx, collection, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	owner, err := m.assets.OwnerOf(ctx, collection, tokenID)
	if err != nil {
		return false, fmt.Errorf("query asset owner: %w", err)
	}
	if owner != listing.Seller {
		return false, nil
	}

	return hasTransferApproval(ctx, m.assets, collection, owner, m.operator, tokenID)
}
