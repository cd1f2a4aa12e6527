package repository

import (
	"context"
	"fmt"

	"github.com/tokenmart/marketd/internal/domain"
)

// SetCurrencyAllowed adds or removes a currency from the payment allow-list.
// Both directions are idempotent.
func (r *PostgresRepository) SetCurrencyAllowed(ctx context.Context, currency domain.Address, allowed bool) error {
	var query string
	if allowed {
		query = `INSERT INTO allowed_currencies (currency) VALUES ($1) ON CONFLICT (currency) DO NOTHING`
	} else {
		query = `DELETE FROM allowed_currencies WHERE currency = $1`
	}

	if _, err := r.exec(ctx, query, currency.String()); err != nil {
		return fmt.Errorf("set currency allowance: %w", err)
	}
	return nil
}

// IsCurrencyAllowed reports whether a currency may be used as the payment
// currency of a non-native listing.
func (r *PostgresRepository) IsCurrencyAllowed(ctx context.Context, currency domain.Address) (bool, error) {
	var exists bool
	err := r.queryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM allowed_currencies WHERE currency = $1)`,
		currency.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check currency allowance: %w", err)
	}
	return exists, nil
}

// ListAllowedCurrencies returns the full allow-list.
func (r *PostgresRepository) ListAllowedCurrencies(ctx context.Context) ([]domain.Address, error) {
	rows, err := r.query(ctx, `SELECT currency FROM allowed_currencies ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("list allowed currencies: %w", err)
	}
	defer rows.Close()

	var currencies []domain.Address
	for rows.Next() {
		var currency string
		if err := rows.Scan(&currency); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		currencies = append(currencies, domain.Address(currency))
	}
	return currencies, rows.Err()
}
