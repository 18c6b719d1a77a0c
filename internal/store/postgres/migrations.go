package postgres

import (
	"context"
	"fmt"

	"movierental/internal/errs"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "catalog",
		sql: `
			CREATE TABLE IF NOT EXISTS pricing_categories (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				base_price NUMERIC(10,2) NOT NULL CHECK (base_price >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT pricing_categories_name_key UNIQUE (name)
			);
			CREATE TABLE IF NOT EXISTS titles (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				genre TEXT NOT NULL DEFAULT '',
				total_copies INT NOT NULL CHECK (total_copies >= 0),
				available_copies INT NOT NULL,
				pricing_category_id BIGINT REFERENCES pricing_categories(id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT titles_available_bounds CHECK (available_copies >= 0 AND available_copies <= total_copies)
			);`,
	},
	{
		version: 2,
		name:    "rentals",
		sql: `
			CREATE TABLE IF NOT EXISTS rentals (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE RESTRICT,
				rental_date DATE NOT NULL,
				due_date DATE NOT NULL,
				return_date DATE,
				base_price NUMERIC(10,2) NOT NULL CHECK (base_price >= 0),
				late_fee NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (late_fee >= 0),
				total_price NUMERIC(10,2) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS rentals_open_due_idx ON rentals (due_date) WHERE return_date IS NULL;
			CREATE INDEX IF NOT EXISTS rentals_title_idx ON rentals (title_id);
			CREATE INDEX IF NOT EXISTS rentals_rental_date_idx ON rentals (rental_date DESC);`,
	},
	{
		version: 3,
		name:    "late_fees",
		sql: `
			CREATE TABLE IF NOT EXISTS late_fees (
				id BIGSERIAL PRIMARY KEY,
				days_late_start INT NOT NULL CHECK (days_late_start >= 0),
				days_late_end INT NOT NULL,
				fee_per_day NUMERIC(10,2) NOT NULL CHECK (fee_per_day >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (days_late_end >= days_late_start),
				CONSTRAINT late_fees_no_overlap EXCLUDE USING gist (
					int4range(days_late_start, days_late_end, '[]') WITH &&
				)
			);`,
	},
	{
		version: 4,
		name:    "rental_events",
		sql: `
			CREATE TABLE IF NOT EXISTS rental_events (
				id BIGSERIAL PRIMARY KEY,
				event_id UUID NOT NULL UNIQUE,
				aggregate_id BIGINT NOT NULL,
				event_type TEXT NOT NULL,
				event_data JSONB NOT NULL,
				version INT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (aggregate_id, version)
			);`,
	},
	{
		version: 5,
		name:    "pricing_category_names_ignore_case",
		sql: `
			ALTER TABLE pricing_categories DROP CONSTRAINT IF EXISTS pricing_categories_name_key;
			CREATE UNIQUE INDEX IF NOT EXISTS pricing_categories_name_key ON pricing_categories (lower(name));`,
	},
}

// migrationLockKey serializes concurrent migrators across processes.
const migrationLockKey = 0x6d6f7669

// Migrate applies pending migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return errs.Persist("create schema_migrations", err)
	}

	for _, m := range migrations {
		if err := s.apply(ctx, m); err != nil {
			return errs.Persist(fmt.Sprintf("migration %d %s", m.version, m.name), err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return err
	}

	var applied bool
	if err := sqlTx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
	).Scan(&applied); err != nil {
		return err
	}
	if applied {
		return nil
	}

	if _, err := sqlTx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := sqlTx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name,
	); err != nil {
		return err
	}
	return sqlTx.Commit()
}
