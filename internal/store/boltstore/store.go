// Package boltstore is an embedded single-file implementation of store.Store.
// Bolt runs one writer at a time, so every WithinTx is serialized against
// every other; readers see the last committed state.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"movierental/internal/errs"
	"movierental/internal/store"
)

var (
	bucketTitles     = []byte("titles")
	bucketCategories = []byte("pricing_categories")
	bucketCatNames   = []byte("pricing_category_names")
	bucketRentals    = []byte("rentals")
	bucketFeeTiers   = []byte("fee_tiers")
	bucketEvents     = []byte("rental_events")

	allBuckets = [][]byte{bucketTitles, bucketCategories, bucketCatNames, bucketRentals, bucketFeeTiers, bucketEvents}
)

type Store struct {
	db     *bolt.DB
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errs.Persist("open bolt database", err)
	}
	return &Store{db: db, tracer: otel.Tracer("movierental/store/bolt")}, nil
}

func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return errs.Persist("begin transaction", err)
	}
	ctx, span := s.tracer.Start(ctx, "boltstore.within_tx")
	defer span.End()

	err := s.db.Update(func(btx *bolt.Tx) error {
		return fn(ctx, &tx{btx: btx})
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return errs.Persist("begin read", err)
	}
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(ctx, &tx{btx: btx})
	})
}

// Migrate creates the buckets.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.Update(func(btx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	return errs.Persist("migrate", err)
}

func (s *Store) Ping(ctx context.Context) error {
	return errs.Persist("ping", s.db.View(func(*bolt.Tx) error { return nil }))
}

func (s *Store) Close() error { return s.db.Close() }

type tx struct {
	btx *bolt.Tx
}

func (t *tx) Catalog() store.CatalogRepo       { return catalogRepo{t} }
func (t *tx) Inventory() store.InventoryLedger { return inventoryLedger{t} }
func (t *tx) Rentals() store.RentalRepo        { return rentalRepo{t} }
func (t *tx) FeeTiers() store.FeeTierRepo      { return feeTierRepo{t} }
func (t *tx) Events() store.EventLog           { return eventLog{t} }

func (t *tx) bucket(name []byte) (*bolt.Bucket, error) {
	b := t.btx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket %s missing: store not migrated", name)
	}
	return b, nil
}

// get decodes the record under id. ok is false when it is absent.
func (t *tx) get(name []byte, id int64, v any) (bool, error) {
	b, err := t.bucket(name)
	if err != nil {
		return false, err
	}
	raw := b.Get(itob(id))
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s/%d: %w", name, id, err)
	}
	return true, nil
}

func (t *tx) put(name []byte, id int64, v any) error {
	b, err := t.bucket(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%d: %w", name, id, err)
	}
	return b.Put(itob(id), raw)
}

func (t *tx) nextID(name []byte) (int64, error) {
	b, err := t.bucket(name)
	if err != nil {
		return 0, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	return int64(seq), nil
}

// each decodes every record in the bucket in key order.
func each[T any](t *tx, name []byte, fn func(*T) error) error {
	b, err := t.bucket(name)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		rec := new(T)
		if err := json.Unmarshal(v, rec); err != nil {
			return fmt.Errorf("decode %s/%d: %w", name, btoi(k), err)
		}
		return fn(rec)
	})
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
