// Package postgres implements store.Store on PostgreSQL via lib/pq.
//
// Write transactions run at READ COMMITTED. Correctness under concurrency
// comes from conditional single-statement updates on titles, FOR UPDATE on
// rentals being closed, and a table lock on late_fees for tier mutations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"movierental/internal/errs"
	"movierental/internal/store"
)

type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// Open connects with the given DSN and applies pool limits.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Persist("open database", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return New(db), nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store {
	return &Store{db: db, tracer: otel.Tracer("movierental/store/postgres")}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return s.run(ctx, "postgres.within_tx", &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	return s.run(ctx, "postgres.view", &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, name string, opts *sql.TxOptions, fn store.TxFunc) error {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Bool("tx.read_only", opts.ReadOnly),
	))
	defer span.End()

	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		span.RecordError(err)
		return errs.Persist("begin transaction", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{tx: sqlTx}); err != nil {
		span.RecordError(err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		span.RecordError(err)
		return errs.Persist("commit transaction", mapError(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return errs.Persist("ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error { return s.db.Close() }

type tx struct {
	tx *sql.Tx
}

func (t *tx) Catalog() store.CatalogRepo       { return catalogRepo{t.tx} }
func (t *tx) Inventory() store.InventoryLedger { return inventoryLedger{t.tx} }
func (t *tx) Rentals() store.RentalRepo        { return rentalRepo{t.tx} }
func (t *tx) FeeTiers() store.FeeTierRepo      { return feeTierRepo{t.tx} }
func (t *tx) Events() store.EventLog           { return eventLog{t.tx} }

// rowsAffected returns errNone when the statement touched nothing.
func rowsAffected(res sql.Result, errNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errNone
	}
	return nil
}
