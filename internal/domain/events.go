package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType enumerates the recorded state transitions.
type EventType string

const (
	EventListed                   EventType = "listed"
	EventCanceled                 EventType = "canceled"
	EventSold                     EventType = "sold"
	EventFeeUpdated               EventType = "fee_updated"
	EventNativeFeesWithdrawn      EventType = "native_fees_withdrawn"
	EventTokenFeesWithdrawn       EventType = "token_fees_withdrawn"
	EventCurrencyAllowanceUpdated EventType = "currency_allowance_updated"
)

// Event is one entry of the append-only market event log. Seq is assigned by
// the store and gives a total order over all transitions. Addresses carries
// the identities involved, denormalized for indexing by external observers.
type Event struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Addresses []Address       `json:"addresses"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent builds an unsequenced event from a payload struct. Seq is filled
// in when the event is appended to the log.
func NewEvent(t EventType, payload interface{}, addresses ...Address) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Addresses: addresses,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ListedPayload is recorded on listing creation and on price update.
type ListedPayload struct {
	Seller     Address         `json:"seller"`
	Collection Address         `json:"collection"`
	TokenID    decimal.Decimal `json:"token_id"`
	Price      decimal.Decimal `json:"price"`
	Currency   Address         `json:"currency"`
}

// CanceledPayload is recorded when a seller withdraws a listing.
type CanceledPayload struct {
	Seller     Address         `json:"seller"`
	Collection Address         `json:"collection"`
	TokenID    decimal.Decimal `json:"token_id"`
}

// SoldPayload is recorded on a completed sale.
type SoldPayload struct {
	Buyer      Address         `json:"buyer"`
	Seller     Address         `json:"seller"`
	Collection Address         `json:"collection"`
	TokenID    decimal.Decimal `json:"token_id"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee"`
	Currency   Address         `json:"currency"`
}

// FeeUpdatedPayload is recorded when the administrator changes the fee rate.
type FeeUpdatedPayload struct {
	RateBps int32 `json:"rate_bps"`
}

// FeesWithdrawnPayload is recorded for both native and token withdrawals.
type FeesWithdrawnPayload struct {
	Currency Address         `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	To       Address         `json:"to"`
}

// CurrencyAllowancePayload is recorded when the allow-list changes.
type CurrencyAllowancePayload struct {
	Currency Address `json:"currency"`
	Allowed  bool    `json:"allowed"`
}
