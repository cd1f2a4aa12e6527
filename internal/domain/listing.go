package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a single fixed-price offer to sell one asset. At most one active
// listing exists per (Collection, TokenID) key; a listing never survives a
// completed or canceled trade. Price is strictly positive for any active
// listing; a zero price is the absence sentinel and can never be stored.
type Listing struct {
	Seller     Address         `json:"seller"`
	Collection Address         `json:"collection"`
	TokenID    decimal.Decimal `json:"token_id"`
	Price      decimal.Decimal `json:"price"`
	Currency   Address         `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IsNativeSale reports whether the listing settles in the native currency.
func (l *Listing) IsNativeSale() bool {
	return l.Currency.IsNative()
}

// ValidPrice reports whether d is a strictly positive integer amount.
func ValidPrice(d decimal.Decimal) bool {
	return d.IsPositive() && d.IsInteger()
}

// ValidTokenID reports whether d is a non-negative integer token id.
func ValidTokenID(d decimal.Decimal) bool {
	return !d.IsNegative() && d.IsInteger()
}
