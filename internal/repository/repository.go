package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
)

// Repository defines all data access operations of the marketplace registry.
// Implementations must report domain sentinel errors (domain.ErrNotFound,
// domain.ErrAlreadyListed) so business logic can branch without inspecting
// driver errors.
type Repository interface {
	// Listing operations
	CreateListing(ctx context.Context, listing *domain.Listing) error
	GetListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (*domain.Listing, error)
	UpdateListingPrice(ctx context.Context, collection domain.Address, tokenID, price decimal.Decimal) error
	DeleteListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) error
	ListListings(ctx context.Context, filter *ListingFilter) ([]*domain.Listing, error)

	// Fee configuration and accruals
	GetFeeRate(ctx context.Context) (int32, error)
	SetFeeRate(ctx context.Context, rateBps int32) error
	GetFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error)
	AccrueFee(ctx context.Context, currency domain.Address, amount decimal.Decimal) error
	ZeroFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error)

	// Payment-currency allow-list
	SetCurrencyAllowed(ctx context.Context, currency domain.Address, allowed bool) error
	IsCurrencyAllowed(ctx context.Context, currency domain.Address) (bool, error)
	ListAllowedCurrencies(ctx context.Context) ([]domain.Address, error)

	// Append-only event log
	AppendEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, filter *EventFilter) ([]*domain.Event, error)

	// Transaction support. Every mutation made through the repository passed
	// to fn is committed atomically, or rolled back in full if fn errors.
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error

	// Health check
	Ping(ctx context.Context) error
}

// ListingFilter defines filtering options for listing queries.
type ListingFilter struct {
	Collection *domain.Address // Filter by asset collection
	Seller     *domain.Address // Filter by seller identity
	Currency   *domain.Address // Filter by payment currency
	Limit      int             // Maximum number of results
	Offset     int             // Number of results to skip (for pagination)
}

// EventFilter defines filtering options for event log reads.
type EventFilter struct {
	Type     *domain.EventType // Filter by event type
	AfterSeq int64             // Return events with seq strictly greater
	Limit    int               // Maximum number of results
}
