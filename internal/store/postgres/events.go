package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"movierental/internal/errs"
	"movierental/internal/model"
)

type eventLog struct{ tx *sql.Tx }

// Append checks the rental's current version and inserts the new events.
// The (aggregate_id, version) unique key catches writers that raced past
// the check.
func (l eventLog) Append(ctx context.Context, rentalID int64, expectedVersion int, events ...model.Event) error {
	var current int
	if err := l.tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM rental_events WHERE aggregate_id = $1
	`, rentalID).Scan(&current); err != nil {
		return fmt.Errorf("query current version: %w", err)
	}
	if current != expectedVersion {
		return fmt.Errorf("%w: rental %d at version %d, expected %d",
			errs.ErrConcurrencyConflict, rentalID, current, expectedVersion)
	}

	stmt, err := l.tx.PrepareContext(ctx, `
		INSERT INTO rental_events (event_id, aggregate_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		version := expectedVersion + i + 1
		if _, err := stmt.ExecContext(ctx, event.ID, rentalID, event.Type, []byte(event.Data), version, event.CreatedAt); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (l eventLog) Load(ctx context.Context, rentalID int64) ([]model.Event, error) {
	rows, err := l.tx.QueryContext(ctx, `
		SELECT event_id, aggregate_id, event_type, event_data, version, created_at
		FROM rental_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, rentalID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			event model.Event
			data  []byte
		)
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.Type, &data, &event.Version, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Data = data
		out = append(out, event)
	}
	return out, rows.Err()
}
