package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the per-entity methods
// run against, so the same code serves pooled and transactional access.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository implements the Repository interface on PostgreSQL via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository instance.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		q:    pool,
	}
}

// WithTransaction executes fn against a transaction-scoped repository.
// If fn returns an error, the transaction is rolled back and no mutation made
// through it is observable. Otherwise the transaction is committed. Calling
// WithTransaction on a repository that is already transactional runs fn in
// the enclosing transaction.
func (r *PostgresRepository) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txRepo := &PostgresRepository{pool: r.pool, q: tx, inTx: true}
	if err := fn(txRepo); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// exec is a helper to execute a query and return the result
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return r.q.Exec(ctx, query, args...)
}

// queryRow is a helper to query a single row
func (r *PostgresRepository) queryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return r.q.QueryRow(ctx, query, args...)
}

// query is a helper to query multiple rows
func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return r.q.Query(ctx, query, args...)
}

// parseDecimal converts a NUMERIC column read as text into a decimal.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
