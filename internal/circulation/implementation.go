package circulation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"movierental/internal/errs"
	"movierental/internal/feetier"
	"movierental/internal/model"
	"movierental/internal/store"
)

// Engine runs checkouts and returns as single store transactions. A failed
// call leaves stored state exactly as it was.
type Engine struct {
	store    store.Store
	clock    Clock
	logger   *slog.Logger
	notifier Notifier
	tracer   trace.Tracer
	meters   metric.MeterProvider

	checkouts metric.Int64Counter
	returns   metric.Int64Counter
	lateFees  metric.Int64Counter
}

var _ Service = (*Engine)(nil)

type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithNotifier publishes committed events to n.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithMeterProvider records counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option { return func(e *Engine) { e.meters = mp } }

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  SystemClock{},
		logger: slog.Default(),
		tracer: otel.Tracer("movierental/circulation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "circulation")
	if e.meters == nil {
		e.meters = otel.GetMeterProvider()
	}

	meter := e.meters.Meter("movierental/circulation")
	e.checkouts = e.counter(meter, "rentals.checkouts", "Checkout attempts by outcome", "{checkout}")
	e.returns = e.counter(meter, "rentals.returns", "Return attempts by outcome", "{return}")
	e.lateFees = e.counter(meter, "rentals.late_fee_cents", "Late fees charged, in cents", "{cent}")
	return e
}

// counter returns a no-op instrument when creation fails.
func (e *Engine) counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		e.logger.Warn("counter disabled", "counter", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

func (e *Engine) today() time.Time { return model.Day(e.clock.Now()) }

// Checkout rents one copy of a title. The price lookup, inventory
// decrement, rental insert and history entry commit together or not at all.
func (e *Engine) Checkout(ctx context.Context, userID, titleID int64) (*model.Rental, error) {
	ctx, span := e.tracer.Start(ctx, "circulation.checkout", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("title.id", titleID),
	))
	defer span.End()

	if userID <= 0 {
		return nil, e.fail(ctx, span, e.checkouts, "checkout", errs.Invalid("userId", "must be positive"))
	}
	if titleID <= 0 {
		return nil, e.fail(ctx, span, e.checkouts, "checkout", errs.Invalid("movieId", "must be positive"))
	}

	today := e.today()
	var (
		rental *model.Rental
		event  model.Event
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Catalog().GetTitle(ctx, titleID); err != nil {
			return err
		}
		pricing, err := tx.Catalog().PricingForTitle(ctx, titleID)
		if err != nil {
			return err
		}
		if err := tx.Inventory().DecrementIfAvailable(ctx, titleID); err != nil {
			return err
		}

		rental = &model.Rental{
			UserID:     userID,
			TitleID:    titleID,
			RentalDate: today,
			DueDate:    model.DueDate(today),
			BasePrice:  pricing.BasePrice,
		}
		if err := tx.Rentals().CreateOpen(ctx, rental); err != nil {
			return err
		}

		event, err = model.NewEvent(rental.ID, model.EventRentalCheckedOut, 1, model.RentalCheckedOut{
			RentalID:   rental.ID,
			UserID:     rental.UserID,
			TitleID:    rental.TitleID,
			RentalDate: model.FormatDate(rental.RentalDate),
			DueDate:    model.FormatDate(rental.DueDate),
			BasePrice:  rental.BasePrice,
		})
		if err != nil {
			return err
		}
		return tx.Events().Append(ctx, rental.ID, 0, event)
	})
	if err != nil {
		return nil, e.fail(ctx, span, e.checkouts, "checkout", err)
	}

	span.SetAttributes(attribute.Int64("rental.id", rental.ID))
	e.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	e.logger.InfoContext(ctx, "rental checked out",
		"rental_id", rental.ID, "user_id", userID, "title_id", titleID,
		"due_date", model.FormatDate(rental.DueDate), "base_price", rental.BasePrice.String())
	e.publish(ctx, event)
	return rental, nil
}

// Return closes an open rental, charging the late fee in effect today, and
// puts the copy back in the same transaction.
func (e *Engine) Return(ctx context.Context, rentalID int64) (*model.Rental, error) {
	ctx, span := e.tracer.Start(ctx, "circulation.return", trace.WithAttributes(
		attribute.Int64("rental.id", rentalID),
	))
	defer span.End()

	if rentalID <= 0 {
		return nil, e.fail(ctx, span, e.returns, "return", errs.Invalid("rentalId", "must be positive"))
	}

	today := e.today()
	var (
		closed   *model.Rental
		daysLate int
		event    model.Event
	)
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		rental, err := tx.Rentals().GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if !rental.IsOpen() {
			return errs.ErrAlreadyReturned
		}

		daysLate = model.DaysLate(rental.DueDate, today)
		table, err := feetier.LoadTable(ctx, tx)
		if err != nil {
			return err
		}
		fee := table.Resolve(daysLate)

		closed, err = tx.Rentals().Close(ctx, rentalID, today, fee)
		if err != nil {
			return err
		}
		if err := tx.Inventory().Increment(ctx, rental.TitleID); err != nil {
			return err
		}

		event, err = model.NewEvent(rentalID, model.EventRentalReturned, 2, model.RentalReturned{
			RentalID:   rentalID,
			TitleID:    rental.TitleID,
			ReturnDate: model.FormatDate(today),
			DaysLate:   daysLate,
			LateFee:    fee,
			TotalPrice: closed.TotalPrice,
		})
		if err != nil {
			return err
		}
		return tx.Events().Append(ctx, rentalID, 1, event)
	})
	if err != nil {
		return nil, e.fail(ctx, span, e.returns, "return", err)
	}

	span.SetAttributes(
		attribute.Int("rental.days_late", daysLate),
		attribute.String("rental.late_fee", closed.LateFee.String()),
	)
	e.returns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	if !closed.LateFee.IsZero() {
		e.lateFees.Add(ctx, closed.LateFee.Cents())
	}
	e.logger.InfoContext(ctx, "rental returned",
		"rental_id", rentalID, "title_id", closed.TitleID, "days_late", daysLate,
		"late_fee", closed.LateFee.String(), "total_price", closed.TotalPrice.String())
	e.publish(ctx, event)
	return closed, nil
}

func (e *Engine) Get(ctx context.Context, rentalID int64) (*model.Rental, error) {
	var rental *model.Rental
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rental, err = tx.Rentals().Get(ctx, rentalID)
		return err
	})
	if err != nil {
		return nil, errs.Persist("get rental", err)
	}
	return rental, nil
}

// List returns one of the rental views. Overdue is relative to the clock.
func (e *Engine) List(ctx context.Context, view model.RentalView) ([]*model.Rental, error) {
	ctx, span := e.tracer.Start(ctx, "circulation.list", trace.WithAttributes(
		attribute.String("rental.view", view.String()),
	))
	defer span.End()

	filter := model.RentalFilter{View: view, AsOf: e.today()}
	var rentals []*model.Rental
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rentals, err = tx.Rentals().List(ctx, filter)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, errs.Persist("list rentals", err)
	}
	if rentals == nil {
		rentals = []*model.Rental{}
	}
	return rentals, nil
}

func (e *Engine) ListActive(ctx context.Context) ([]*model.Rental, error) {
	return e.List(ctx, model.ActiveRentals)
}

func (e *Engine) ListOverdue(ctx context.Context) ([]*model.Rental, error) {
	return e.List(ctx, model.OverdueRentals)
}

func (e *Engine) ListAll(ctx context.Context) ([]*model.Rental, error) {
	return e.List(ctx, model.AllRentals)
}

// History returns the rental's events in version order.
func (e *Engine) History(ctx context.Context, rentalID int64) ([]model.Event, error) {
	var events []model.Event
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Rentals().Get(ctx, rentalID); err != nil {
			return err
		}
		var err error
		events, err = tx.Events().Load(ctx, rentalID)
		return err
	})
	if err != nil {
		return nil, errs.Persist("load rental history", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// Audit checks available + open rentals = total copies, and available >= 0,
// for every title in one snapshot.
func (e *Engine) Audit(ctx context.Context) ([]Discrepancy, error) {
	ctx, span := e.tracer.Start(ctx, "circulation.audit")
	defer span.End()

	found := []Discrepancy{}
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		titles, err := tx.Catalog().ListTitles(ctx)
		if err != nil {
			return err
		}
		for _, t := range titles {
			open, _, err := tx.Rentals().CountByTitle(ctx, t.ID)
			if err != nil {
				return err
			}
			if t.AvailableCopies < 0 || t.AvailableCopies+open != t.TotalCopies {
				found = append(found, Discrepancy{
					TitleID:     t.ID,
					Available:   t.AvailableCopies,
					OpenRentals: open,
					TotalCopies: t.TotalCopies,
				})
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, errs.Persist("audit inventory", err)
	}

	span.SetAttributes(attribute.Int("audit.discrepancies", len(found)))
	for _, d := range found {
		e.logger.ErrorContext(ctx, "inventory discrepancy",
			"title_id", d.TitleID, "available", d.Available, "open_rentals", d.OpenRentals, "total", d.TotalCopies)
	}
	return found, nil
}

func (e *Engine) publish(ctx context.Context, event model.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "publish rental event failed",
			"rental_id", event.AggregateID, "event_type", event.Type, "error", err)
	}
}

func (e *Engine) fail(ctx context.Context, span trace.Span, counter metric.Int64Counter, op string, err error) error {
	err = errs.Persist(op, err)
	kind := errs.KindOf(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, errs.CodeOf(err))
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", errs.CodeOf(err))))

	switch kind {
	case errs.KindPersistence, errs.KindInternal:
		e.logger.ErrorContext(ctx, op+" failed", "error", err, "kind", kind.String())
	default:
		e.logger.InfoContext(ctx, op+" rejected", "error", err, "code", errs.CodeOf(err))
	}
	return err
}
