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

// MaxFeeRateBps caps the fee rate at 10%.
const MaxFeeRateBps = 1000

// FeeManager owns the fee configuration, the payment-currency allow-list and
// the accrued-fee balances. All mutations are administrator-only. The current
// rate is read at sale time, so a rate change applies to already-active
// listings.
type FeeManager struct {
	repo      repository.Repository
	access    *AccessControl
	tokens    chain.TokenLedger
	bank      chain.Bank
	guard     *Guard
	publisher *EventPublisher
	logger    zerolog.Logger
}

// NewFeeManager creates a new FeeManager instance.
func NewFeeManager(
	repo repository.Repository,
	access *AccessControl,
	tokens chain.TokenLedger,
	bank chain.Bank,
	guard *Guard,
	publisher *EventPublisher,
	logger zerolog.Logger,
) *FeeManager {
	return &FeeManager{
		repo:      repo,
		access:    access,
		tokens:    tokens,
		bank:      bank,
		guard:     guard,
		publisher: publisher,
		logger:    logger,
	}
}

// SetFeeRate replaces the marketplace fee rate.
func (m *FeeManager) SetFeeRate(ctx context.Context, caller domain.Address, rateBps int32) error {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.access.RequireAdmin(caller); err != nil {
		return err
	}
	if rateBps < 0 || rateBps > MaxFeeRateBps {
		return domain.ErrFeeTooHigh
	}

	var event *domain.Event
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		if err := repo.SetFeeRate(ctx, rateBps); err != nil {
			return err
		}
		event, err = domain.NewEvent(domain.EventFeeUpdated, domain.FeeUpdatedPayload{
			RateBps: rateBps,
		}, caller)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("set_fee_rate", err)
		return err
	}

	m.publisher.Publish(event)
	m.logger.Info().Int32("rate_bps", rateBps).Msg("Fee rate updated")
	return nil
}

// GetFeeRate returns the current rate in basis points.
func (m *FeeManager) GetFeeRate(ctx context.Context) (int32, error) {
	return m.repo.GetFeeRate(ctx)
}

// SetCurrencyAllowance adds or removes a fungible-token currency from the
// payment allow-list. The native sentinel is not a token currency.
func (m *FeeManager) SetCurrencyAllowance(ctx context.Context, caller, currency domain.Address, allowed bool) error {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.access.RequireAdmin(caller); err != nil {
		return err
	}
	if currency.IsNative() {
		return domain.ErrInvalidCurrency
	}

	var event *domain.Event
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		if err := repo.SetCurrencyAllowed(ctx, currency, allowed); err != nil {
			return err
		}
		event, err = domain.NewEvent(domain.EventCurrencyAllowanceUpdated, domain.CurrencyAllowancePayload{
			Currency: currency,
			Allowed:  allowed,
		}, caller, currency)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("set_currency_allowance", err)
		return err
	}

	m.publisher.Publish(event)
	m.logger.Info().
		Str("currency", currency.String()).
		Bool("allowed", allowed).
		Msg("Currency allowance updated")
	return nil
}

// WithdrawNativeFees pays the accrued native fees out to the administrator.
// The zeroing and the payout are all-or-nothing: a failed payout rolls the
// accrual back.
func (m *FeeManager) WithdrawNativeFees(ctx context.Context, caller domain.Address) (decimal.Decimal, error) {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	if err := m.access.RequireAdmin(caller); err != nil {
		return decimal.Zero, err
	}

	var (
		amount decimal.Decimal
		event  *domain.Event
	)
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		amount, err = repo.ZeroFeeAccrual(ctx, domain.NativeCurrency)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return domain.ErrNoFeesToWithdraw
		}

		if err := m.bank.Transfer(ctx, m.access.Admin(), amount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWithdrawalFailed, err)
		}

		event, err = domain.NewEvent(domain.EventNativeFeesWithdrawn, domain.FeesWithdrawnPayload{
			Currency: domain.NativeCurrency,
			Amount:   amount,
			To:       m.access.Admin(),
		}, m.access.Admin())
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("withdraw_native_fees", err)
		return decimal.Zero, err
	}

	metrics.FeeWithdrawals.WithLabelValues("native").Inc()
	m.publisher.Publish(event)
	m.logger.Info().Str("amount", amount.String()).Msg("Native fees withdrawn")
	return amount, nil
}

// WithdrawTokenFees pays out the accrued fees of one token currency, with the
// same all-or-nothing contract as the native path.
func (m *FeeManager) WithdrawTokenFees(ctx context.Context, caller, currency domain.Address) (decimal.Decimal, error) {
	ctx, release, err := m.guard.Enter(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	if err := m.access.RequireAdmin(caller); err != nil {
		return decimal.Zero, err
	}
	if currency.IsNative() {
		return decimal.Zero, domain.ErrInvalidCurrency
	}

	var (
		amount decimal.Decimal
		event  *domain.Event
	)
	err = m.repo.WithTransaction(ctx, func(repo repository.Repository) error {
		amount, err = repo.ZeroFeeAccrual(ctx, currency)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return domain.ErrNoFeesToWithdraw
		}

		if err := m.tokens.Transfer(ctx, currency, m.access.Admin(), amount); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWithdrawalFailed, err)
		}

		event, err = domain.NewEvent(domain.EventTokenFeesWithdrawn, domain.FeesWithdrawnPayload{
			Currency: currency,
			Amount:   amount,
			To:       m.access.Admin(),
		}, m.access.Admin(), currency)
		if err != nil {
			return err
		}
		return repo.AppendEvent(ctx, event)
	})
	if err != nil {
		countFailure("withdraw_token_fees", err)
		return decimal.Zero, err
	}

	metrics.FeeWithdrawals.WithLabelValues("token").Inc()
	m.publisher.Publish(event)
	m.logger.Info().
		Str("currency", currency.String()).
		Str("amount", amount.String()).
		Msg("Token fees withdrawn")
	return amount, nil
}

// GetFeeAccrual returns the accrued balance for a currency.
func (m *FeeManager) GetFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	return m.repo.GetFeeAccrual(ctx, currency)
}

// ListAllowedCurrencies returns the payment-currency allow-list.
func (m *FeeManager) ListAllowedCurrencies(ctx context.Context) ([]domain.Address, error) {
	return m.repo.ListAllowedCurrencies(ctx)
}

// GetEvents reads the append-only market event log.
func (m *FeeManager) GetEvents(ctx context.Context, filter *repository.EventFilter) ([]*domain.Event, error) {
	return m.repo.ListEvents(ctx, filter)
}
