package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
)

// GetFeeRate returns the current fee rate in basis points. The singleton row
// is seeded by Migrate, so a missing row is a real failure.
func (r *PostgresRepository) GetFeeRate(ctx context.Context) (int32, error) {
	var rateBps int32
	err := r.queryRow(ctx, `SELECT rate_bps FROM fee_config WHERE id = 1`).Scan(&rateBps)
	if err != nil {
		return 0, fmt.Errorf("get fee rate: %w", err)
	}
	return rateBps, nil
}

// SetFeeRate replaces the fee rate.
func (r *PostgresRepository) SetFeeRate(ctx context.Context, rateBps int32) error {
	query := `
		INSERT INTO fee_config (id, rate_bps) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET rate_bps = EXCLUDED.rate_bps, updated_at = now()
	`
	if _, err := r.exec(ctx, query, rateBps); err != nil {
		return fmt.Errorf("set fee rate: %w", err)
	}
	return nil
}

// GetFeeAccrual returns the accrued fee balance for a currency; the native
// balance is keyed by the zero-address sentinel. Zero if never accrued.
func (r *PostgresRepository) GetFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	var balance string
	err := r.queryRow(ctx,
		`SELECT balance::text FROM fee_accruals WHERE currency = $1`,
		currency.String(),
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get fee accrual: %w", err)
	}
	return parseDecimal(balance)
}

// AccrueFee adds amount to a currency's accrued balance.
func (r *PostgresRepository) AccrueFee(ctx context.Context, currency domain.Address, amount decimal.Decimal) error {
	query := `
		INSERT INTO fee_accruals (currency, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (currency) DO UPDATE
		SET balance = fee_accruals.balance + EXCLUDED.balance, updated_at = now()
	`
	if _, err := r.exec(ctx, query, currency.String(), amount.String()); err != nil {
		return fmt.Errorf("accrue fee: %w", err)
	}
	return nil
}

// ZeroFeeAccrual locks the accrual row, zeroes it and returns the balance it
// held. Run inside WithTransaction so a failed payout rolls the zeroing back.
func (r *PostgresRepository) ZeroFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	var balance string
	err := r.queryRow(ctx,
		`SELECT balance::text FROM fee_accruals WHERE currency = $1 FOR UPDATE`,
		currency.String(),
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("lock fee accrual: %w", err)
	}

	amount, err := parseDecimal(balance)
	if err != nil {
		return decimal.Zero, err
	}

	_, err = r.exec(ctx,
		`UPDATE fee_accruals SET balance = 0, updated_at = now() WHERE currency = $1`,
		currency.String(),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("zero fee accrual: %w", err)
	}
	return amount, nil
}
