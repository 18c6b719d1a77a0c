package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/store"
)

// Fault names a write a FaultStore can be told to fail.
type Fault string

const (
	FaultInventoryDecrement Fault = "inventory.decrement"
	FaultInventoryIncrement Fault = "inventory.increment"
	FaultRentalCreate       Fault = "rentals.create_open"
	FaultRentalClose        Fault = "rentals.close"
	FaultEventAppend        Fault = "events.append"
)

// ErrInjected is returned by every injected fault.
var ErrInjected = errors.New("chaos: injected fault")

// FaultStore wraps a store and fails selected writes inside WithinTx.
// Reads and View pass through untouched.
type FaultStore struct {
	store.Store

	mu     sync.RWMutex
	active map[Fault]bool
}

func NewFaultStore(s store.Store) *FaultStore {
	return &FaultStore{Store: s, active: make(map[Fault]bool)}
}

func (f *FaultStore) Inject(faults ...Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fault := range faults {
		f.active[fault] = true
	}
}

func (f *FaultStore) Clear(faults ...Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fault := range faults {
		delete(f.active, fault)
	}
}

func (f *FaultStore) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.active)
}

func (f *FaultStore) check(fault Fault) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.active[fault] {
		return ErrInjected
	}
	return nil
}

func (f *FaultStore) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, faultTx{Tx: tx, f: f})
	})
}

type faultTx struct {
	store.Tx
	f *FaultStore
}

func (t faultTx) Inventory() store.InventoryLedger {
	return faultInventory{InventoryLedger: t.Tx.Inventory(), f: t.f}
}
func (t faultTx) Rentals() store.RentalRepo { return faultRentals{RentalRepo: t.Tx.Rentals(), f: t.f} }
func (t faultTx) Events() store.EventLog    { return faultEvents{EventLog: t.Tx.Events(), f: t.f} }

type faultInventory struct {
	store.InventoryLedger
	f *FaultStore
}

func (i faultInventory) DecrementIfAvailable(ctx context.Context, titleID int64) error {
	if err := i.f.check(FaultInventoryDecrement); err != nil {
		return err
	}
	return i.InventoryLedger.DecrementIfAvailable(ctx, titleID)
}

// Increment applies the write before failing, so the enclosing transaction
// has real work to roll back.
func (i faultInventory) Increment(ctx context.Context, titleID int64) error {
	if err := i.InventoryLedger.Increment(ctx, titleID); err != nil {
		return err
	}
	return i.f.check(FaultInventoryIncrement)
}

type faultRentals struct {
	store.RentalRepo
	f *FaultStore
}

func (r faultRentals) CreateOpen(ctx context.Context, rental *model.Rental) error {
	if err := r.f.check(FaultRentalCreate); err != nil {
		return err
	}
	return r.RentalRepo.CreateOpen(ctx, rental)
}

func (r faultRentals) Close(ctx context.Context, id int64, returnDate time.Time, lateFee money.Money) (*model.Rental, error) {
	if err := r.f.check(FaultRentalClose); err != nil {
		return nil, err
	}
	return r.RentalRepo.Close(ctx, id, returnDate, lateFee)
}

type faultEvents struct {
	store.EventLog
	f *FaultStore
}

func (e faultEvents) Append(ctx context.Context, rentalID int64, expectedVersion int, events ...model.Event) error {
	if err := e.f.check(FaultEventAppend); err != nil {
		return err
	}
	return e.EventLog.Append(ctx, rentalID, expectedVersion, events...)
}
