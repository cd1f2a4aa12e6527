package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tokenmart/marketd/internal/domain"
)

// AppendEvent writes one entry to the append-only event log and fills in the
// assigned sequence number. Append in the same transaction as the state
// transition it records so the log and the registry never diverge.
func (r *PostgresRepository) AppendEvent(ctx context.Context, event *domain.Event) error {
	addresses := make([]string, len(event.Addresses))
	for i, a := range event.Addresses {
		addresses[i] = a.String()
	}

	query := `
		INSERT INTO market_events (id, type, addresses, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`

	err := r.queryRow(ctx, query,
		event.ID,
		string(event.Type),
		pq.Array(addresses),
		[]byte(event.Payload),
		event.CreatedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents reads the log in sequence order, optionally filtered by type and
// cursored by AfterSeq.
func (r *PostgresRepository) ListEvents(ctx context.Context, filter *EventFilter) ([]*domain.Event, error) {
	query := `
		SELECT seq, id, type, addresses, payload, created_at
		FROM market_events
		WHERE seq > $1
	`
	args := []any{filter.AfterSeq}
	argNum := 2

	if filter.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(*filter.Type))
		argNum++
	}

	query += " ORDER BY seq ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			event     domain.Event
			eventType string
			addresses []string
			payload   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&event.Seq, &event.ID, &eventType, pq.Array(&addresses), &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = domain.EventType(eventType)
		event.Payload = payload
		event.CreatedAt = createdAt
		event.Addresses = make([]domain.Address, len(addresses))
		for i, a := range addresses {
			event.Addresses[i] = domain.Address(a)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}
