package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tokenmart/marketd/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// CreateListing inserts a new active listing. The (collection, token_id)
// primary key enforces at most one active listing per asset; a conflict is
// reported as domain.ErrAlreadyListed.
func (r *PostgresRepository) CreateListing(ctx context.Context, listing *domain.Listing) error {
	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now

	query := `
		INSERT INTO listings (collection, token_id, seller, price, currency, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4::numeric, $5, $6, $7)
	`

	_, err := r.exec(ctx, query,
		listing.Collection.String(),
		listing.TokenID.String(),
		listing.Seller.String(),
		listing.Price.String(),
		listing.Currency.String(),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyListed
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// GetListing retrieves the active listing for an asset, or domain.ErrNotFound.
func (r *PostgresRepository) GetListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) (*domain.Listing, error) {
	query := `
		SELECT collection, token_id::text, seller, price::text, currency, created_at, updated_at
		FROM listings
		WHERE collection = $1 AND token_id = $2::numeric
	`

	listing, err := scanListing(r.queryRow(ctx, query, collection.String(), tokenID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// UpdateListingPrice mutates the price of an active listing in place.
func (r *PostgresRepository) UpdateListingPrice(ctx context.Context, collection domain.Address, tokenID, price decimal.Decimal) error {
	query := `
		UPDATE listings
		SET price = $3::numeric, updated_at = now()
		WHERE collection = $1 AND token_id = $2::numeric
	`

	tag, err := r.exec(ctx, query, collection.String(), tokenID.String(), price.String())
	if err != nil {
		return fmt.Errorf("update listing price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteListing clears an active listing back to absent.
func (r *PostgresRepository) DeleteListing(ctx context.Context, collection domain.Address, tokenID decimal.Decimal) error {
	query := `DELETE FROM listings WHERE collection = $1 AND token_id = $2::numeric`

	tag, err := r.exec(ctx, query, collection.String(), tokenID.String())
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListListings returns active listings matching the filter, newest first.
func (r *PostgresRepository) ListListings(ctx context.Context, filter *ListingFilter) ([]*domain.Listing, error) {
	query := `
		SELECT collection, token_id::text, seller, price::text, currency, created_at, updated_at
		FROM listings
		WHERE 1=1
	`
	args := []any{}
	argNum := 1

	if filter.Collection != nil {
		query += fmt.Sprintf(" AND collection = $%d", argNum)
		args = append(args, filter.Collection.String())
		argNum++
	}
	if filter.Seller != nil {
		query += fmt.Sprintf(" AND seller = $%d", argNum)
		args = append(args, filter.Seller.String())
		argNum++
	}
	if filter.Currency != nil {
		query += fmt.Sprintf(" AND currency = $%d", argNum)
		args = append(args, filter.Currency.String())
		argNum++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// scanListing reads one listing row; token_id and price arrive as text.
func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		collection, tokenID, seller, price, currency string
		createdAt, updatedAt                         time.Time
	)
	if err := row.Scan(&collection, &tokenID, &seller, &price, &currency, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	tokenDec, err := parseDecimal(tokenID)
	if err != nil {
		return nil, err
	}
	priceDec, err := parseDecimal(price)
	if err != nil {
		return nil, err
	}

	return &domain.Listing{
		Seller:     domain.Address(seller),
		Collection: domain.Address(collection),
		TokenID:    tokenDec,
		Price:      priceDec,
		Currency:   domain.Address(currency),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}
