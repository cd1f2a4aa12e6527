package manager

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokenmart/marketd/internal/domain"
	"github.com/tokenmart/marketd/internal/repository"
)

func newTestListingManager(repo *mockRepository, assets *fakeAssets) *ListingManager {
	return NewListingManager(repo, assets, NewGuard(), NewEventPublisher(nil, zerolog.Nop()), testOperator, zerolog.Nop())
}

func TestListingManager_ListAsset(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)
	price := decimal.RequireFromString("1000000000000000000")

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	listing, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
	require.NoError(t, err)
	require.NotNil(t, listing)
	assert.Equal(t, testSeller, listing.Seller)
	assert.True(t, price.Equal(listing.Price))

	stored, err := repo.GetListing(ctx, testNFT, tokenID)
	require.NoError(t, err)
	assert.Equal(t, testSeller, stored.Seller)
	assert.True(t, stored.Currency.IsNative())

	require.Len(t, repo.events, 1)
	assert.Equal(t, domain.EventListed, repo.events[0].Type)
	assert.Equal(t, int64(1), repo.events[0].Seq)
}

func TestListingManager_ListAsset_Validation(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	tests := []struct {
		name    string
		tokenID decimal.Decimal
		price   decimal.Decimal
		wantErr error
	}{
		{
			name:    "zero price",
			tokenID: tokenID,
			price:   decimal.Zero,
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "negative price",
			tokenID: tokenID,
			price:   decimal.NewFromInt(-5),
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "fractional price",
			tokenID: tokenID,
			price:   decimal.RequireFromString("10.5"),
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "negative token id",
			tokenID: decimal.NewFromInt(-1),
			price:   decimal.NewFromInt(100),
			wantErr: domain.ErrInvalidTokenID,
		},
		{
			name:    "fractional token id",
			tokenID: decimal.RequireFromString("1.5"),
			price:   decimal.NewFromInt(100),
			wantErr: domain.ErrInvalidTokenID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.ListAsset(ctx, testSeller, testNFT, tt.tokenID, tt.price, domain.NativeCurrency)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, repo.listings)
	assert.Empty(t, repo.events)
}

func TestListingManager_ListAsset_NotOwner(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	mgr := newTestListingManager(repo, assets)

	_, err := mgr.ListAsset(ctx, testBuyer, testNFT, tokenID, decimal.NewFromInt(100), domain.NativeCurrency)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.Empty(t, repo.listings)
}

func TestListingManager_ListAsset_Approval(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)
	price := decimal.NewFromInt(100)

	t.Run("no approval", func(t *testing.T) {
		repo := newMockRepository()
		assets := newFakeAssets()
		assets.mint(testNFT, tokenID, testSeller)
		mgr := newTestListingManager(repo, assets)

		_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
		assert.ErrorIs(t, err, domain.ErrNotApproved)
	})

	t.Run("per-token approval suffices", func(t *testing.T) {
		repo := newMockRepository()
		assets := newFakeAssets()
		assets.mint(testNFT, tokenID, testSeller)
		assets.approved[assetKey(testNFT, tokenID)] = testOperator
		mgr := newTestListingManager(repo, assets)

		_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
		assert.NoError(t, err)
	})

	t.Run("per-token approval for someone else", func(t *testing.T) {
		repo := newMockRepository()
		assets := newFakeAssets()
		assets.mint(testNFT, tokenID, testSeller)
		assets.approved[assetKey(testNFT, tokenID)] = testBuyer
		mgr := newTestListingManager(repo, assets)

		_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
		assert.ErrorIs(t, err, domain.ErrNotApproved)
	})
}

func TestListingManager_ListAsset_AlreadyListed(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)
	price := decimal.NewFromInt(100)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
	require.NoError(t, err)

	_, err = mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
	assert.ErrorIs(t, err, domain.ErrAlreadyListed)
	assert.Len(t, repo.events, 1)
}

func TestListingManager_ListAsset_CurrencyAllowList(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)
	price := decimal.NewFromInt(100)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, testToken)
	assert.ErrorIs(t, err, domain.ErrCurrencyNotAllowed)

	require.NoError(t, repo.SetCurrencyAllowed(ctx, testToken, true))
	listing, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, testToken)
	require.NoError(t, err)
	assert.Equal(t, testToken, listing.Currency)
}

func TestListingManager_CancelListing(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)
	price := decimal.NewFromInt(100)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, price, domain.NativeCurrency)
	require.NoError(t, err)

	t.Run("only the seller may cancel", func(t *testing.T) {
		err := mgr.CancelListing(ctx, testBuyer, testNFT, tokenID)
		assert.ErrorIs(t, err, domain.ErrNotSeller)
	})

	t.Run("seller cancels", func(t *testing.T) {
		require.NoError(t, mgr.CancelListing(ctx, testSeller, testNFT, tokenID))
		_, err := repo.GetListing(ctx, testNFT, tokenID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, []domain.EventType{domain.EventListed, domain.EventCanceled}, repo.eventTypes())
	})

	t.Run("cancel twice", func(t *testing.T) {
		err := mgr.CancelListing(ctx, testSeller, testNFT, tokenID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListingManager_CancelListing_StaleListingAllowed(t *testing.T) {
	// The asset moved out-of-band after listing. The seller can still clear
	// the stale listing.
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, decimal.NewFromInt(100), domain.NativeCurrency)
	require.NoError(t, err)

	assets.owners[assetKey(testNFT, tokenID)] = testBuyer
	assert.NoError(t, mgr.CancelListing(ctx, testSeller, testNFT, tokenID))
}

func TestListingManager_UpdatePrice(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, decimal.NewFromInt(100), domain.NativeCurrency)
	require.NoError(t, err)

	t.Run("invalid price", func(t *testing.T) {
		_, err := mgr.UpdatePrice(ctx, testSeller, testNFT, tokenID, decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	})

	t.Run("not the seller", func(t *testing.T) {
		_, err := mgr.UpdatePrice(ctx, testBuyer, testNFT, tokenID, decimal.NewFromInt(200))
		assert.ErrorIs(t, err, domain.ErrNotSeller)
	})

	t.Run("seller updates", func(t *testing.T) {
		listing, err := mgr.UpdatePrice(ctx, testSeller, testNFT, tokenID, decimal.NewFromInt(200))
		require.NoError(t, err)
		assert.True(t, listing.Price.Equal(decimal.NewFromInt(200)))

		stored, err := repo.GetListing(ctx, testNFT, tokenID)
		require.NoError(t, err)
		assert.True(t, stored.Price.Equal(decimal.NewFromInt(200)))
	})

	t.Run("seller no longer owns the asset", func(t *testing.T) {
		assets.owners[assetKey(testNFT, tokenID)] = testBuyer
		_, err := mgr.UpdatePrice(ctx, testSeller, testNFT, tokenID, decimal.NewFromInt(300))
		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})

	t.Run("no such listing", func(t *testing.T) {
		_, err := mgr.UpdatePrice(ctx, testSeller, testNFT, decimal.NewFromInt(99), decimal.NewFromInt(200))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListingManager_IsListingValid(t *testing.T) {
	ctx := context.Background()
	tokenID := decimal.NewFromInt(7)

	repo := newMockRepository()
	assets := newFakeAssets()
	assets.mint(testNFT, tokenID, testSeller)
	assets.approveAll(testNFT, testSeller, testOperator)
	mgr := newTestListingManager(repo, assets)

	t.Run("absent listing is invalid, not an error", func(t *testing.T) {
		valid, err := mgr.IsListingValid(ctx, testNFT, tokenID)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	_, err := mgr.ListAsset(ctx, testSeller, testNFT, tokenID, decimal.NewFromInt(100), domain.NativeCurrency)
	require.NoError(t, err)

	t.Run("live listing", func(t *testing.T) {
		valid, err := mgr.IsListingValid(ctx, testNFT, tokenID)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("approval revoked", func(t *testing.T) {
		assets.revokeAll(testNFT, testSeller, testOperator)
		valid, err := mgr.IsListingValid(ctx, testNFT, tokenID)
		require.NoError(t, err)
		assert.False(t, valid)
		assets.approveAll(testNFT, testSeller, testOperator)
	})

	t.Run("owner changed", func(t *testing.T) {
		assets.owners[assetKey(testNFT, tokenID)] = testBuyer
		valid, err := mgr.IsListingValid(ctx, testNFT, tokenID)
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestListingManager_ListListings_Filter(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepository()
	assets := newFakeAssets()
	mgr := newTestListingManager(repo, assets)

	other := domain.Address("0x00000000000000000000000000000000000000c2")
	for i, collection := range []domain.Address{testNFT, testNFT, other} {
		tokenID := decimal.NewFromInt(int64(i))
		assets.mint(collection, tokenID, testSeller)
		assets.approveAll(collection, testSeller, testOperator)
		_, err := mgr.ListAsset(ctx, testSeller, collection, tokenID, decimal.NewFromInt(100), domain.NativeCurrency)
		require.NoError(t, err)
	}

	listings, err := mgr.ListListings(ctx, &repository.ListingFilter{Collection: &testNFT})
	require.NoError(t, err)
	assert.Len(t, listings, 2)

	listings, err = mgr.ListListings(ctx, &repository.ListingFilter{Seller: &testSeller})
	require.NoError(t, err)
	assert.Len(t, listings, 3)
}
