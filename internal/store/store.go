// Package store defines the transactional persistence contract. Every
// repository obtained from a Tx is bound to that transaction; nothing in it
// is visible to other callers until the enclosing WithinTx commits.
package store

import (
	"context"
	"time"

	"movierental/internal/model"
	"movierental/internal/money"
)

// TxFunc is a unit of work. Returning an error, or panicking, rolls back
// everything it did.
type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	// WithinTx runs fn in a read-write transaction and commits if fn
	// returns nil.
	WithinTx(ctx context.Context, fn TxFunc) error
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn TxFunc) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type Tx interface {
	Catalog() CatalogRepo
	Inventory() InventoryLedger
	Rentals() RentalRepo
	FeeTiers() FeeTierRepo
	Events() EventLog
}

type CatalogRepo interface {
	CreateTitle(ctx context.Context, t *model.Title) error
	GetTitle(ctx context.Context, id int64) (*model.Title, error)
	ListTitles(ctx context.Context) ([]*model.Title, error)
	// UpdateTitle sets name and genre; stock and pricing are untouched.
	UpdateTitle(ctx context.Context, id int64, name, genre string) error
	DeleteTitle(ctx context.Context, id int64) error
	CreatePricingCategory(ctx context.Context, c *model.PricingCategory) error
	GetPricingCategory(ctx context.Context, id int64) (*model.PricingCategory, error)
	ListPricingCategories(ctx context.Context) ([]*model.PricingCategory, error)
	AssignPricing(ctx context.Context, titleID, categoryID int64) error
	// PricingForTitle fails with errs.ErrNoPricingSet when the title has
	// no category.
	PricingForTitle(ctx context.Context, titleID int64) (*model.PricingCategory, error)
}

// InventoryLedger owns Title.AvailableCopies.
type InventoryLedger interface {
	// DecrementIfAvailable takes one copy in a single conditional step and
	// fails with errs.ErrNoCopiesAvailable when none are left.
	DecrementIfAvailable(ctx context.Context, titleID int64) error
	// Increment returns one copy. It fails with errs.ErrInconsistent if
	// availability would exceed the copies ever stocked.
	Increment(ctx context.Context, titleID int64) error
	// AddCopies stocks n new copies, raising total and available.
	AddCopies(ctx context.Context, titleID int64, n int) error
	Available(ctx context.Context, titleID int64) (int, error)
}

type RentalRepo interface {
	// CreateOpen assigns r.ID and persists r as open with no late fee.
	CreateOpen(ctx context.Context, r *model.Rental) error
	Get(ctx context.Context, id int64) (*model.Rental, error)
	// GetForUpdate is Get plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Rental, error)
	// Close finalizes an open rental. It fails with errs.ErrRentalNotFound
	// or errs.ErrAlreadyClosed.
	Close(ctx context.Context, id int64, returnDate time.Time, lateFee money.Money) (*model.Rental, error)
	List(ctx context.Context, f model.RentalFilter) ([]*model.Rental, error)
	CountByTitle(ctx context.Context, titleID int64) (open, total int, err error)
}

type FeeTierRepo interface {
	// Lock serializes fee tier mutations for the rest of the transaction.
	Lock(ctx context.Context) error
	// List returns every tier ordered by DaysLateStart.
	List(ctx context.Context) ([]model.FeeTier, error)
	Get(ctx context.Context, id int64) (*model.FeeTier, error)
	Create(ctx context.Context, t *model.FeeTier) error
	Update(ctx context.Context, t *model.FeeTier) error
	Delete(ctx context.Context, id int64) error
}

// EventLog is the append-only rental history.
type EventLog interface {
	// Append stores events with versions expectedVersion+1... and fails
	// with errs.ErrConcurrencyConflict if the rental is not at
	// expectedVersion.
	Append(ctx context.Context, rentalID int64, expectedVersion int, events ...model.Event) error
	Load(ctx context.Context, rentalID int64) ([]model.Event, error)
}
