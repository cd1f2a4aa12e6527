package server

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/repository"
)

func memKey(collection domain.Address, tokenID decimal.Decimal) string {
	return string(collection) + "/" + tokenID.String()
}

// memRepository is an in-memory repository.Repository with copy-on-begin
// transactions, shared by the handler tests.
type memRepository struct {
	listings map[string]*domain.Listing
	rateBps  int32
	accruals map[domain.Address]decimal.Decimal
	allowed  map[domain.Address]bool
	events   []*domain.Event
	nextSeq  int64
}

func newMemRepository() *memRepository {
	return &memRepository{
		listings: make(map[string]*domain.Listing),
		rateBps:  250,
		accruals: make(map[domain.Address]decimal.Decimal),
		allowed:  make(map[domain.Address]bool),
		nextSeq:  1,
	}
}

func (m *memRepository) snapshot() *memRepository {
	s := &memRepository{
		listings: make(map[string]*domain.Listing, len(m.listings)),
		rateBps:  m.rateBps,
		accruals: make(map[domain.Address]decimal.Decimal, len(m.accruals)),
		allowed:  make(map[domain.Address]bool, len(m.allowed)),
		events:   append([]*domain.Event(nil), m.events...),
		nextSeq:  m.nextSeq,
	}
	for k, v := range m.listings {
		cp := *v
		s.listings[k] = &cp
	}
	for k, v := range m.accruals {
		s.accruals[k] = v
	}
	for k, v := range m.allowed {
		s.allowed[k] = v
	}
	return s
}

func (m *memRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	key := memKey(listing.Collection, listing.TokenID)
	if _, ok := m.listings[key]; ok {
		return domain.ErrAlreadyListed
	}
	cp := *listing
	m.listings[key] = &cp
	return nil
}

func (m *memRepository) GetListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (*domain.Listing, error) {
	listing, ok := m.listings[memKey(collection, tokenID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *listing
	return &cp, nil
}

func (m *memRepository) UpdateListingPrice(ctx context.Context, collection domain.Address, tokenID, price decimal.Decimal) error {
	listing, ok := m.listings[memKey(collection, tokenID)]
	if !ok {
		return domain.ErrNotFound
	}
	listing.Price = price
	return nil
}

func (m *memRepository) DeleteListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) error {
	key := memKey(collection, tokenID)
	if _, ok := m.listings[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.listings, key)
	return nil
}

func (m *memRepository) ListListings(ctx context.Context, filter *repository.ListingFilter) ([]*domain.Listing, error) {
	var result []*domain.Listing
	for _, listing := range m.listings {
		if filter != nil {
			if filter.Collection != nil && listing.Collection != *filter.Collection {
				continue
			}
			if filter.Seller != nil && listing.Seller != *filter.Seller {
				continue
			}
			if filter.Currency != nil && listing.Currency != *filter.Currency {
				continue
			}
		}
		cp := *listing
		result = append(result, &cp)
	}
	return result, nil
}

func (m *memRepository) GetFeeRate(ctx context.Context) (int32, error) {
	return m.rateBps, nil
}

func (m *memRepository) SetFeeRate(ctx context.Context, rateBps int32) error {
	m.rateBps = rateBps
	return nil
}

func (m *memRepository) GetFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	return m.accruals[currency], nil
}

func (m *memRepository) AccrueFee(ctx context.Context, currency domain.Address, amount decimal.Decimal) error {
	m.accruals[currency] = m.accruals[currency].Add(amount)
	return nil
}

func (m *memRepository) ZeroFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	balance := m.accruals[currency]
	m.accruals[currency] = decimal.Zero
	return balance, nil
}

func (m *memRepository) SetCurrencyAllowed(ctx context.Context, currency domain.Address, allowed bool) error {
	if allowed {
		m.allowed[currency] = true
	} else {
		delete(m.allowed, currency)
	}
	return nil
}

func (m *memRepository) IsCurrencyAllowed(ctx context.Context, currency domain.Address) (bool, error) {
	return m.allowed[currency], nil
}

func (m *memRepository) ListAllowedCurrencies(ctx context.Context) ([]domain.Address, error) {
	var result []domain.Address
	for currency := range m.allowed {
		result = append(result, currency)
	}
	return result, nil
}

func (m *memRepository) AppendEvent(ctx context.Context, event *domain.Event) error {
	event.Seq = m.nextSeq
	m.nextSeq++
	m.events = append(m.events, event)
	return nil
}

func (m *memRepository) ListEvents(ctx context.Context, filter *repository.EventFilter) ([]*domain.Event, error) {
	var result []*domain.Event
	for _, event := range m.events {
		if filter != nil {
			if filter.Type != nil && event.Type != *filter.Type {
				continue
			}
			if event.Seq <= filter.AfterSeq {
				continue
			}
		}
		result = append(result, event)
	}
	return result, nil
}

func (m *memRepository) WithTransaction(ctx context.Context, fn func(repo repository.Repository) error) error {
	before := m.snapshot()
	if err := fn(m); err != nil {
		m.listings = before.listings
		m.rateBps = before.rateBps
		m.accruals = before.accruals
		m.allowed = before.allowed
		m.events = before.events
		m.nextSeq = before.nextSeq
		return err
	}
	return nil
}

func (m *memRepository) Ping(ctx context.Context) error {
	return nil
}

// memAssets is an in-memory chain.AssetRegistry.
type memAssets struct {
	owners      map[string]domain.Address
	approved    map[string]domain.Address
	operatorAll map[string]bool
}

func newMemAssets() *memAssets {
	return &memAssets{
		owners:      make(map[string]domain.Address),
		approved:    make(map[string]domain.Address),
		operatorAll: make(map[string]bool),
	}
}

func (f *memAssets) mint(collection domain.Address, tokenID decimal.Decimal, owner domain.Address) {
	f.owners[memKey(collection, tokenID)] = owner
}

func (f *memAssets) approveAll(collection, owner, operator domain.Address) {
	f.operatorAll[string(collection)+"/"+string(owner)+"/"+string(operator)] = true
}

func (f *memAssets) ownerOf(collection domain.Address, tokenID decimal.Decimal) domain.Address {
	return f.owners[memKey(collection, tokenID)]
}

func (f *memAssets) OwnerOf(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error) {
	owner, ok := f.owners[memKey(collection, tokenID)]
	if !ok {
		return "", fmt.Errorf("no such asset %s", memKey(collection, tokenID))
	}
	return owner, nil
}

func (f *memAssets) GetApproved(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error) {
	return f.approved[memKey(collection, tokenID)], nil
}

func (f *memAssets) IsApprovedForAll(ctx context.Context, collection, owner, operator domain.Address) (bool, error) {
	return f.operatorAll[string(collection)+"/"+string(owner)+"/"+string(operator)], nil
}

func (f *memAssets) TransferFrom(ctx context.Context, collection, from, to domain.Address, tokenID decimal.Decimal) error {
	key := memKey(collection, tokenID)
	if f.owners[key] != from {
		return fmt.Errorf("%s does not own %s", from, key)
	}
	f.owners[key] = to
	return nil
}

// memTokens is an in-memory chain.TokenLedger.
type memTokens struct {
	balances        map[string]decimal.Decimal
	allowances      map[string]decimal.Decimal
	transferFromErr error
}

func newMemTokens() *memTokens {
	return &memTokens{
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]decimal.Decimal),
	}
}

func (f *memTokens) fund(currency, account domain.Address, amount decimal.Decimal) {
	f.balances[string(currency)+"/"+string(account)] = amount
}

func (f *memTokens) approve(currency, owner, spender domain.Address, amount decimal.Decimal) {
	f.allowances[string(currency)+"/"+string(owner)+"/"+string(spender)] = amount
}

func (f *memTokens) BalanceOf(ctx context.Context, currency, account domain.Address) (decimal.Decimal, error) {
	return f.balances[string(currency)+"/"+string(account)], nil
}

func (f *memTokens) Allowance(ctx context.Context, currency, owner, spender domain.Address) (decimal.Decimal, error) {
	return f.allowances[string(currency)+"/"+string(owner)+"/"+string(spender)], nil
}

func (f *memTokens) TransferFrom(ctx context.Context, currency, from, to domain.Address, amount decimal.Decimal) error {
	if f.transferFromErr != nil {
		return f.transferFromErr
	}
	fromKey := string(currency) + "/" + string(from)
	if f.balances[fromKey].LessThan(amount) {
		return fmt.Errorf("balance of %s below %s", from, amount)
	}
	f.balances[fromKey] = f.balances[fromKey].Sub(amount)
	toKey := string(currency) + "/" + string(to)
	f.balances[toKey] = f.balances[toKey].Add(amount)
	return nil
}

func (f *memTokens) Transfer(ctx context.Context, currency, to domain.Address, amount decimal.Decimal) error {
	toKey := string(currency) + "/" + string(to)
	f.balances[toKey] = f.balances[toKey].Add(amount)
	return nil
}

// memBank records native payouts.
type memBank struct {
	payments []struct {
		to     domain.Address
		amount decimal.Decimal
	}
}

func (f *memBank) Transfer(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	f.payments = append(f.payments, struct {
		to     domain.Address
		amount decimal.Decimal
	}{to, amount})
	return nil
}
