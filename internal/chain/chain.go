// Package chain defines the capability contracts the marketplace consumes:
// the asset-ownership registry, the fungible-token ledger and the native
// bank. The registry core never talks to a node directly; it sees only these
// interfaces, so test doubles implement them with in-memory maps and the
// production EthereumClient implements them against an EVM node.
package chain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
)

// AssetRegistry answers ownership and approval questions about non-fungible
// assets and moves them between owners. TransferFrom fails if from is not the
// current owner or the operator lacks approval.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error)
	GetApproved(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error)
	IsApprovedForAll(ctx context.Context, collection, owner, operator domain.Address) (bool, error)
	TransferFrom(ctx context.Context, collection, from, to domain.Address, tokenID decimal.Decimal) error
}

// TokenLedger holds balances and allowances of fungible-token currencies.
// TransferFrom draws down a pre-authorized allowance; Transfer spends the
// operator's own balance.
type TokenLedger interface {
	BalanceOf(ctx context.Context, currency, account domain.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, currency, owner, spender domain.Address) (decimal.Decimal, error)
	TransferFrom(ctx context.Context, currency, from, to domain.Address, amount decimal.Decimal) error
	Transfer(ctx context.Context, currency, to domain.Address, amount decimal.Decimal) error
}

// Bank pays out native currency held in the marketplace custody account.
type Bank interface {
	Transfer(ctx context.Context, to domain.Address, amount decimal.Decimal) error
}
