package chaos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"movierental/internal/circulation"
	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/store"
)

// Lab builds experiments that drive a circulation engine against one store.
// Every write goes through a FaultStore so experiments can inject failures.
type Lab struct {
	faults *FaultStore
	engine *circulation.Engine
}

func NewLab(s store.Store, logger *slog.Logger, opts ...circulation.Option) *Lab {
	if logger == nil {
		logger = slog.Default()
	}
	faults := NewFaultStore(s)
	opts = append([]circulation.Option{circulation.WithLogger(logger)}, opts...)
	return &Lab{
		faults: faults,
		engine: circulation.NewEngine(faults, opts...),
	}
}

// Experiments returns the predefined experiments. Each experiment keeps its
// counters in its closures, so build a fresh set for every run.
func (l *Lab) Experiments() []Experiment {
	return []Experiment{
		l.ConcurrentCheckoutRace(50, 3),
		l.DoubleReturnRace(20),
		l.PersistenceFault(),
	}
}

func (l *Lab) consistency() Metric {
	return Metric{
		Name: "inventory_discrepancies",
		Query: func(ctx context.Context) (float64, error) {
			found, err := l.engine.Audit(ctx)
			return float64(len(found)), err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

func (l *Lab) available(name string, titleID *int64) Metric {
	return Metric{
		Name: name,
		Query: func(ctx context.Context) (float64, error) {
			var n int
			err := l.faults.View(ctx, func(ctx context.Context, tx store.Tx) error {
				var err error
				n, err = tx.Inventory().Available(ctx, *titleID)
				return err
			})
			return float64(n), err
		},
	}
}

func counter(name string, n *atomic.Int64) Metric {
	return Metric{
		Name:  name,
		Query: func(context.Context) (float64, error) { return float64(n.Load()), nil },
	}
}

func equals(metric string, want float64, msg string) Assertion {
	return Assertion{
		Metric:    metric,
		Condition: func(v float64) bool { return v == want },
		Message:   msg,
	}
}

// seedTitle stocks a fresh title under its own pricing category.
func (l *Lab) seedTitle(ctx context.Context, copies int, price string) (int64, error) {
	var id int64
	err := l.faults.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cat := &model.PricingCategory{Name: "chaos-" + uuid.NewString(), BasePrice: money.MustParse(price)}
		if err := tx.Catalog().CreatePricingCategory(ctx, cat); err != nil {
			return err
		}
		title := &model.Title{
			Name:              "chaos title",
			Genre:             "test",
			TotalCopies:       copies,
			AvailableCopies:   copies,
			PricingCategoryID: cat.ID,
		}
		if err := tx.Catalog().CreateTitle(ctx, title); err != nil {
			return err
		}
		id = title.ID
		return nil
	})
	return id, err
}

// returnAll closes rentals left open by an experiment.
func (l *Lab) returnAll(ctx context.Context, ids []int64) error {
	var errList []error
	for _, id := range ids {
		if _, err := l.engine.Return(ctx, id); err != nil && !errors.Is(err, errs.ErrAlreadyReturned) {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// concurrently runs fn n times from goroutines released together.
func concurrently(n int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn(i)
		}()
	}
	close(start)
	wg.Wait()
}

// ConcurrentCheckoutRace fires attempts concurrent checkouts at a title with
// copies copies.
func (l *Lab) ConcurrentCheckoutRace(attempts, copies int) Experiment {
	var (
		titleID    int64
		successes  atomic.Int64
		rejections atomic.Int64
		mu         sync.Mutex
		rented     []int64
	)

	return Experiment{
		Name:        "concurrent-checkout-race",
		Hypothesis:  fmt.Sprintf("Exactly %d of %d simultaneous checkouts succeed and no copy is rented twice", copies, attempts),
		SteadyState: []Metric{l.consistency()},
		Observe: []Metric{
			counter("checkout_successes", &successes),
			counter("checkout_rejections", &rejections),
			l.available("available_copies", &titleID),
		},
		Method: []Action{
			{
				Type:   "seed",
				Target: "catalog",
				Execute: func(ctx context.Context) (err error) {
					titleID, err = l.seedTitle(ctx, copies, "3.99")
					return err
				},
			},
			{
				Type:   "concurrent-requests",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var unexpected []error
					concurrently(attempts, func(i int) {
						rental, err := l.engine.Checkout(ctx, int64(i+1), titleID)
						mu.Lock()
						defer mu.Unlock()
						switch {
						case err == nil:
							successes.Add(1)
							rented = append(rented, rental.ID)
						case errors.Is(err, errs.ErrNoCopiesAvailable):
							rejections.Add(1)
						default:
							unexpected = append(unexpected, err)
						}
					})
					return errors.Join(unexpected...)
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "return-rentals",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					mu.Lock()
					ids := append([]int64(nil), rented...)
					mu.Unlock()
					return l.returnAll(ctx, ids)
				},
			},
		},
		Validation: []Assertion{
			equals("checkout_successes", float64(copies), "successful checkouts must equal stocked copies"),
			equals("checkout_rejections", float64(attempts-copies), "every other checkout must see no copies available"),
			equals("available_copies", 0, "no copies remain"),
			equals("inventory_discrepancies", 0, "available plus open rentals must equal total copies"),
		},
	}
}

// DoubleReturnRace returns the same rental from attempts goroutines at once.
func (l *Lab) DoubleReturnRace(attempts int) Experiment {
	var (
		titleID   int64
		rentalID  int64
		successes atomic.Int64
		repeats   atomic.Int64
	)

	return Experiment{
		Name:        "double-return-race",
		Hypothesis:  "Concurrent returns of one rental close it exactly once and restock one copy",
		SteadyState: []Metric{l.consistency()},
		Observe: []Metric{
			counter("return_successes", &successes),
			counter("already_returned", &repeats),
			l.available("available_copies", &titleID),
		},
		Method: []Action{
			{
				Type:   "seed",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var err error
					if titleID, err = l.seedTitle(ctx, 1, "2.50"); err != nil {
						return err
					}
					rental, err := l.engine.Checkout(ctx, 1, titleID)
					if err != nil {
						return err
					}
					rentalID = rental.ID
					return nil
				},
			},
			{
				Type:   "concurrent-requests",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var (
						mu         sync.Mutex
						unexpected []error
					)
					concurrently(attempts, func(int) {
						_, err := l.engine.Return(ctx, rentalID)
						switch {
						case err == nil:
							successes.Add(1)
						case errors.Is(err, errs.ErrAlreadyReturned):
							repeats.Add(1)
						default:
							mu.Lock()
							unexpected = append(unexpected, err)
							mu.Unlock()
						}
					})
					return errors.Join(unexpected...)
				},
			},
		},
		Validation: []Assertion{
			equals("return_successes", 1, "exactly one return succeeds"),
			equals("already_returned", float64(attempts-1), "every other return is rejected as already returned"),
			equals("available_copies", 1, "the copy is restocked once"),
			equals("inventory_discrepancies", 0, "available plus open rentals must equal total copies"),
		},
	}
}

// PersistenceFault fails the rental insert during a checkout and the
// inventory increment during a return. Neither call may leave partial state.
func (l *Lab) PersistenceFault() Experiment {
	var (
		titleID  int64
		rentalID int64
		failures atomic.Int64
	)

	openRentals := Metric{
		Name: "open_rentals",
		Query: func(ctx context.Context) (float64, error) {
			var open int
			err := l.faults.View(ctx, func(ctx context.Context, tx store.Tx) error {
				var err error
				open, _, err = tx.Rentals().CountByTitle(ctx, titleID)
				return err
			})
			return float64(open), err
		},
	}

	expectFailure := func(err error) error {
		if err == nil {
			return errors.New("call succeeded despite injected fault")
		}
		if !errors.Is(err, ErrInjected) {
			return fmt.Errorf("unexpected error: %w", err)
		}
		failures.Add(1)
		return nil
	}

	return Experiment{
		Name:        "persistence-fault-injection",
		Hypothesis:  "A storage failure mid-operation rolls back the whole checkout or return",
		SteadyState: []Metric{l.consistency()},
		Observe: []Metric{
			counter("failed_calls", &failures),
			l.available("available_copies", &titleID),
			openRentals,
		},
		Method: []Action{
			{
				Type:   "seed",
				Target: "circulation",
				Execute: func(ctx context.Context) error {
					var err error
					if titleID, err = l.seedTitle(ctx, 2, "4.00"); err != nil {
						return err
					}
					rental, err := l.engine.Checkout(ctx, 1, titleID)
					if err != nil {
						return err
					}
					rentalID = rental.ID
					return nil
				},
			},
			{
				Type:   "fail-write",
				Target: string(FaultRentalCreate),
				Execute: func(ctx context.Context) error {
					l.faults.Inject(FaultRentalCreate)
					defer l.faults.Clear(FaultRentalCreate)
					_, err := l.engine.Checkout(ctx, 2, titleID)
					return expectFailure(err)
				},
			},
			{
				Type:   "fail-write",
				Target: string(FaultInventoryIncrement),
				Execute: func(ctx context.Context) error {
					l.faults.Inject(FaultInventoryIncrement)
					defer l.faults.Clear(FaultInventoryIncrement)
					_, err := l.engine.Return(ctx, rentalID)
					return expectFailure(err)
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "clear-faults",
				Target: "store",
				Execute: func(ctx context.Context) error {
					l.faults.ClearAll()
					return l.returnAll(ctx, []int64{rentalID})
				},
			},
		},
		Validation: []Assertion{
			equals("failed_calls", 2, "both faulted calls fail"),
			equals("available_copies", 1, "availability is unchanged by the failed calls"),
			equals("open_rentals", 1, "the failed return leaves the rental open"),
			equals("inventory_discrepancies", 0, "available plus open rentals must equal total copies"),
		},
	}
}
