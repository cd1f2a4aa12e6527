package manager

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/repository"
)

var (
	testAdmin    = domain.Address("0x00000000000000000000000000000000000000ad")
	testOperator = domain.Address("0x000000000000000000000000000000000000000e")
	testSeller   = domain.Address("0x0000000000000000000000000000000000000051")
	testBuyer    = domain.Address("0x00000000000000000000000000000000000000b1")
	testNFT      = domain.Address("0x00000000000000000000000000000000000000c1")
	testToken    = domain.Address("0x00000000000000000000000000000000000000e7")
)

func assetKey(collection domain.Address, tokenID decimal.Decimal) string {
	return string(collection) + "/" + tokenID.String()
}

// mockRepository implements repository.Repository over maps, with
// copy-on-begin transaction semantics so rollback behavior is observable.
type mockRepository struct {
	listings map[string]*domain.Listing
	rateBps  int32
	accruals map[domain.Address]decimal.Decimal
	allowed  map[domain.Address]bool
	events   []*domain.Event
	nextSeq  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		listings: make(map[string]*domain.Listing),
		rateBps:  250,
		accruals: make(map[domain.Address]decimal.Decimal),
		allowed:  make(map[domain.Address]bool),
		nextSeq:  1,
	}
}

func (m *mockRepository) snapshot() *mockRepository {
	s := &mockRepository{
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

func (m *mockRepository) restore(s *mockRepository) {
	m.listings = s.listings
	m.rateBps = s.rateBps
	m.accruals = s.accruals
	m.allowed = s.allowed
	m.events = s.events
	m.nextSeq = s.nextSeq
}

func (m *mockRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	key := assetKey(listing.Collection, listing.TokenID)
	if _, ok := m.listings[key]; ok {
		return domain.ErrAlreadyListed
	}
	cp := *listing
	m.listings[key] = &cp
	return nil
}

func (m *mockRepository) GetListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (*domain.Listing, error) {
	listing, ok := m.listings[assetKey(collection, tokenID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *listing
	return &cp, nil
}

func (m *mockRepository) UpdateListingPrice(ctx context.Context, collection domain.Address, tokenID, price decimal.Decimal) error {
	listing, ok := m.listings[assetKey(collection, tokenID)]
	if !ok {
		return domain.ErrNotFound
	}
	listing.Price = price
	return nil
}

func (m *mockRepository) DeleteListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) error {
	key := assetKey(collection, tokenID)
	if _, ok := m.listings[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.listings, key)
	return nil
}

func (m *mockRepository) ListListings(ctx context.Context, filter *repository.ListingFilter) ([]*domain.Listing, error) {
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

func (m *mockRepository) GetFeeRate(ctx context.Context) (int32, error) {
	return m.rateBps, nil
}

func (m *mockRepository) SetFeeRate(ctx context.Context, rateBps int32) error {
	m.rateBps = rateBps
	return nil
}

func (m *mockRepository) GetFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	balance, ok := m.accruals[currency]
	if !ok {
		return decimal.Zero, nil
	}
	return balance, nil
}

func (m *mockRepository) AccrueFee(ctx context.Context, currency domain.Address, amount decimal.Decimal) error {
	m.accruals[currency] = m.accruals[currency].Add(amount)
	return nil
}

func (m *mockRepository) ZeroFeeAccrual(ctx context.Context, currency domain.Address) (decimal.Decimal, error) {
	balance := m.accruals[currency]
	m.accruals[currency] = decimal.Zero
	return balance, nil
}

func (m *mockRepository) SetCurrencyAllowed(ctx context.Context, currency domain.Address, allowed bool) error {
	if allowed {
		m.allowed[currency] = true
	} else {
		delete(m.allowed, currency)
	}
	return nil
}

func (m *mockRepository) IsCurrencyAllowed(ctx context.Context, currency domain.Address) (bool, error) {
	return m.allowed[currency], nil
}

func (m *mockRepository) ListAllowedCurrencies(ctx context.Context) ([]domain.Address, error) {
	var result []domain.Address
	for currency := range m.allowed {
		result = append(result, currency)
	}
	return result, nil
}

func (m *mockRepository) AppendEvent(ctx context.Context, event *domain.Event) error {
	event.Seq = m.nextSeq
	m.nextSeq++
	m.events = append(m.events, event)
	return nil
}

func (m *mockRepository) ListEvents(ctx context.Context, filter *repository.EventFilter) ([]*domain.Event, error) {
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

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(repo repository.Repository) error) error {
	before := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *mockRepository) Ping(ctx context.Context) error {
	return nil
}

func (m *mockRepository) eventTypes() []domain.EventType {
	types := make([]domain.EventType, 0, len(m.events))
	for _, event := range m.events {
		types = append(types, event.Type)
	}
	return types
}

// fakeAssets is an in-memory asset registry. onTransfer, when set, runs at
// the start of every TransferFrom with the caller's context, which lets tests
// drive reentrant calls out of a transfer hook.
type fakeAssets struct {
	owners      map[string]domain.Address
	approved    map[string]domain.Address
	operatorAll map[string]bool
	transferErr error
	onTransfer  func(ctx context.Context) error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{
		owners:      make(map[string]domain.Address),
		approved:    make(map[string]domain.Address),
		operatorAll: make(map[string]bool),
	}
}

func (f *fakeAssets) mint(collection domain.Address, tokenID decimal.Decimal, owner domain.Address) {
	f.owners[assetKey(collection, tokenID)] = owner
}

func (f *fakeAssets) approveAll(collection, owner, operator domain.Address) {
	f.operatorAll[string(collection)+"/"+string(owner)+"/"+string(operator)] = true
}

func (f *fakeAssets) revokeAll(collection, owner, operator domain.Address) {
	delete(f.operatorAll, string(collection)+"/"+string(owner)+"/"+string(operator))
}

func (f *fakeAssets) OwnerOf(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error) {
	owner, ok := f.owners[assetKey(collection, tokenID)]
	if !ok {
		return "", fmt.Errorf("no such asset %s", assetKey(collection, tokenID))
	}
	return owner, nil
}

func (f *fakeAssets) GetApproved(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (domain.Address, error) {
	return f.approved[assetKey(collection, tokenID)], nil
}

func (f *fakeAssets) IsApprovedForAll(ctx context.Context, collection, owner, operator domain.Address) (bool, error) {
	return f.operatorAll[string(collection)+"/"+string(owner)+"/"+string(operator)], nil
}

func (f *fakeAssets) TransferFrom(ctx context.Context, collection, from, to domain.Address, tokenID decimal.Decimal) error {
	if f.onTransfer != nil {
		if err := f.onTransfer(ctx); err != nil {
			return err
		}
	}
	if f.transferErr != nil {
		return f.transferErr
	}
	key := assetKey(collection, tokenID)
	if f.owners[key] != from {
		return fmt.Errorf("%s does not own %s", from, key)
	}
	f.owners[key] = to
	return nil
}

// fakeTokens is an in-memory fungible-token ledger keyed by currency.
type fakeTokens struct {
	balances        map[string]decimal.Decimal
	allowances      map[string]decimal.Decimal
	transferFromErr error
	transferErr     error
	transfers       []tokenTransfer
}

type tokenTransfer struct {
	currency domain.Address
	from     domain.Address
	to       domain.Address
	amount   decimal.Decimal
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]decimal.Decimal),
	}
}

func (f *fakeTokens) fund(currency, account domain.Address, amount decimal.Decimal) {
	f.balances[string(currency)+"/"+string(account)] = amount
}

func (f *fakeTokens) approve(currency, owner, spender domain.Address, amount decimal.Decimal) {
	f.allowances[string(currency)+"/"+string(owner)+"/"+string(spender)] = amount
}

func (f *fakeTokens) balance(currency, account domain.Address) decimal.Decimal {
	return f.balances[string(currency)+"/"+string(account)]
}

func (f *fakeTokens) BalanceOf(ctx context.Context, currency, account domain.Address) (decimal.Decimal, error) {
	return f.balances[string(currency)+"/"+string(account)], nil
}

func (f *fakeTokens) Allowance(ctx context.Context, currency, owner, spender domain.Address) (decimal.Decimal, error) {
	return f.allowances[string(currency)+"/"+string(owner)+"/"+string(spender)], nil
}

func (f *fakeTokens) TransferFrom(ctx context.Context, currency, from, to domain.Address, amount decimal.Decimal) error {
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
	f.transfers = append(f.transfers, tokenTransfer{currency: currency, from: from, to: to, amount: amount})
	return nil
}

func (f *fakeTokens) Transfer(ctx context.Context, currency, to domain.Address, amount decimal.Decimal) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	toKey := string(currency) + "/" + string(to)
	f.balances[toKey] = f.balances[toKey].Add(amount)
	f.transfers = append(f.transfers, tokenTransfer{currency: currency, to: to, amount: amount})
	return nil
}

// fakeBank records native payouts from marketplace custody.
type fakeBank struct {
	payments []bankPayment
	err      error
}

type bankPayment struct {
	to     domain.Address
	amount decimal.Decimal
}

func (f *fakeBank) Transfer(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	if f.err != nil {
		return f.err
	}
	f.payments = append(f.payments, bankPayment{to: to, amount: amount})
	return nil
}
