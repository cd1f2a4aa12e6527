package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/chain"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/metrics"
)

// validatePrice enforces the strictly-positive-integer price invariant. A
// zero price is the absence sentinel and must never be accepted as input.
func validatePrice(price decimal.Decimal) error {
	if !domain.ValidPrice(price) {
		return domain.ErrInvalidPrice
	}
	return nil
}

// validateTokenID rejects token ids that cannot identify an asset.
func validateTokenID(tokenID decimal.Decimal) error {
	if !domain.ValidTokenID(tokenID) {
		return domain.ErrInvalidTokenID
	}
	return nil
}

// hasTransferApproval reports whether the marketplace operator may move the
// asset on the owner's behalf, either through an operator approval covering
// the whole collection or a per-token approval.
func hasTransferApproval(ctx context.Context, assets chain.AssetRegistry, collection, owner, operator domain.Address, tokenID decimal.Decimal) (bool, error) {
	approvedAll, err := assets.IsApprovedForAll(ctx, collection, owner, operator)
	if err != nil {
		return false, fmt.Errorf("query operator approval: %w", err)
	}
	if approvedAll {
		return true, nil
	}

	approved, err := assets.GetApproved(ctx, collection, tokenID)
	if err != nil {
		return false, fmt.Errorf("query token approval: %w", err)
	}
	return approved == operator, nil
}

// countFailure records a labeled operation failure; unlabeled errors
// (driver, network) are left to the logs.
func countFailure(operation string, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		metrics.OperationFailures.WithLabelValues(operation, derr.Code).Inc()
	}
}
