package manager

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/chain"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/metrics"
	"github.com/tokenmart/marketd/internal/repository"
)

// feeDenominator converts basis points into a fraction of the price.
var feeDenominator = decimal.NewFromInt(10000)

// ExchangeManager executes the atomic buy protocol. Both settlement paths
// follow strict checks-effects-interactions ordering: re-validate the listing
// against live ownership and approval, clear the listing, move the asset,
// settle the payment, accrue the fee, record the sale. The whole sequence
// runs inside one repository transaction, so a failure at any step (the
// asset transfer and payment interactions included) rolls back every
// registry effect of the call.
type ExchangeManager struct {
	repo      repository.Repository
	assets    chain.AssetRegistry
	tokens    chain.TokenLedger
	bank      chain.Bank
	guard     *Guard
	publisher *EventPublisher
	operator  domain.Address
	logger    zerolog.Logger
}

// NewExchangeManager creates a new ExchangeManager instance. operator is the
// marketplace custody identity that receives token-denominated fees.
func NewExchangeManager(
	repo repository.Repository,
	assets chain.AssetRegistry,
	tokens chain.TokenLedger,
	bank chain.Bank,
	guard *Guard,
	publisher *EventPublisher,
	operator domain.Address,
	logger zerolog.Logger,
) *ExchangeManager {
	return &ExchangeManager{
		repo:      repo,
		assets:    assets,
		tokens:    tokens,
		bank:      bank,
		guard:     guard,
		publisher: publisher,
		operator:  operator,
		logger:    logger,
	}
}

// splitFee computes the fee/seller split: the fee rounds down, the seller
// receives the remainder, and the two sum to price exactly.
func splitFee(price decimal.Decimal, rateBps int32) (fee, sellerAmount decimal.Decimal) {
	fee = price.Mul(decimal.NewFromInt32(rateBps)).Div(feeDenominator).Floor()
	return fee, price.Sub(fee)
}

// BuyWithNative purchases a native-denominated listing. value must equal the
// listing price exactly; the buyer's funds already sit with the marketplace
// custody account when the engine settles.
func (m *ExchangeManager) BuyWithNative(ctx context.Context, caller, collection domain.Address, tokenID, value decimal.Decimal) error {
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
		if !listing.IsNativeSale() {
			return domain.ErrWrongCurrency
		}
		if !value.Equal(listing.Price) {
			return domain.ErrWrongAmount
		}

		if err := m.revalidate(ctx, listing); err != nil {
			return err
		}

		// Clear the listing before any external transfer: a reentrant call
		// from a transfer hook observes an already-absent listing.
		if err := repo.DeleteListing(ctx, collection, tokenID); err != nil {
			return err
		}

		rateBps, err := repo.GetFeeRate(ctx)
		if err != nil {
			return err
		}
		fee, sellerAmount := splitFee(listing.Price, rateBps)

		// Move the asset before any payment movement.
		if err := m.assets.TransferFrom(ctx, collection, listing.Seller, caller, tokenID); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrAssetTransferFailed, err)
		}

		// Credit the seller from custody; the fee stays behind as accrual.
		if err := m.bank.Transfer(ctx, listing.Seller, sellerAmount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPaymentTransferFailed, err)
		}
		if err := repo.AccrueFee(ctx, domain.NativeCurrency, fee); err != nil {
			return err
		}

		event, err = m.soldEvent(caller, listing, fee)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("buy_native", err)
		return err
	}

	metrics.Sales.WithLabelValues("native").Inc()
	m.publisher.Publish(event)
	m.logSale(event)
	return nil
}

// BuyWithToken purchases a token-denominated listing. The settlement amount
// is the stored price; the buyer must have granted the marketplace operator a
// sufficient allowance beforehand.
func (m *ExchangeManager) BuyWithToken(ctx context.Context, caller, collection domain.Address, tokenID decimal.Decimal) error {
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
		if listing.IsNativeSale() {
			return domain.ErrWrongCurrency
		}

		if err := m.revalidate(ctx, listing); err != nil {
			return err
		}

		// Fail on funding before any transfer is attempted.
		balance, err := m.tokens.BalanceOf(ctx, listing.Currency, caller)
		if err != nil {
			return fmt.Errorf("query buyer balance: %w", err)
		}
		if balance.LessThan(listing.Price) {
			return domain.ErrInsufficientBalance
		}
		allowance, err := m.tokens.Allowance(ctx, listing.Currency, caller, m.operator)
		if err != nil {
			return fmt.Errorf("query buyer allowance: %w", err)
		}
		if allowance.LessThan(listing.Price) {
			return domain.ErrInsufficientAllowance
		}

		if err := repo.DeleteListing(ctx, collection, tokenID); err != nil {
			return err
		}

		rateBps, err := repo.GetFeeRate(ctx)
		if err != nil {
			return err
		}
		fee, sellerAmount := splitFee(listing.Price, rateBps)

		if err := m.assets.TransferFrom(ctx, collection, listing.Seller, caller, tokenID); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrAssetTransferFailed, err)
		}

		// Pull the seller's amount and the fee from the buyer in two
		// allowance-backed transfers.
		if err := m.tokens.TransferFrom(ctx, listing.Currency, caller, listing.Seller, sellerAmount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPaymentTransferFailed, err)
		}
		if fee.IsPositive() {
			if err := m.tokens.TransferFrom(ctx, listing.Currency, caller, m.operator, fee); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrPaymentTransferFailed, err)
			}
		}
		if err := repo.AccrueFee(ctx, listing.Currency, fee); err != nil {
			return err
		}

		event, err = m.soldEvent(caller, listing, fee)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("buy_token", err)
		return err
	}

	metrics.Sales.WithLabelValues("token").Inc()
	m.publisher.Publish(event)
	m.logSale(event)
	return nil
}

// CalculateFee quotes the fee/seller split for a price at the current rate.
func (m *ExchangeManager) CalculateFee(ctx context.Context, price decimal.Decimal) (fee, sellerAmount decimal.Decimal, err error) {
	if err := validatePrice(price); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	rateBps, err := m.repo.GetFeeRate(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	fee, sellerAmount = splitFee(price, rateBps)
	return fee, sellerAmount, nil
}

// revalidate re-runs the listing-time checks against live state: ownership
// can change out-of-band between listing and sale, and approvals can be
// revoked. Detected, not prevented.
func (m *ExchangeManager) revalidate(ctx context.Context, listing *domain.Listing) error {
	owner, err := m.assets.OwnerOf(ctx, listing.Collection, listing.TokenID)
	if err != nil {
		return fmt.Errorf("query asset owner: %w", err)
	}
	if owner != listing.Seller {
		return domain.ErrSellerNoLongerOwner
	}

	approved, err := hasTransferApproval(ctx, m.assets, listing.Collection, owner, m.operator, listing.TokenID)
	if err != nil {
		return err
	}
	if !approved {
		return domain.ErrApprovalRevoked
	}
	return nil
}

func (m *ExchangeManager) soldEvent(buyer domain.Address, listing *domain.Listing, fee decimal.Decimal) (*domain.Event, error) {
	return domain.NewEvent(domain.EventSold, domain.SoldPayload{
		Buyer:      buyer,
		Seller:     listing.Seller,
		Collection: listing.Collection,
		TokenID:    listing.TokenID,
		Price:      listing.Price,
		Fee:        fee,
		Currency:   listing.Currency,
	}, buyer, listing.Seller, listing.Collection, listing.Currency)
}

func (m *ExchangeManager) logSale(event *domain.Event) {
	m.logger.Info().
		Str("event_id", event.ID).
		Int64("seq", event.Seq).
		RawJSON("sale", event.Payload).
		Msg("Sale completed")
}
