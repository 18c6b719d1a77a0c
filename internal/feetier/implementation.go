package feetier

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/store"
)

type service struct {
	store  store.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a fee tier service over s.
func NewService(s store.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:  s,
		logger: logger.With("component", "feetier"),
		tracer: otel.Tracer("movierental/feetier"),
	}
}

// Add inserts a tier that must not intersect any existing tier.
func (s *service) Add(ctx context.Context, tier model.FeeTier) (*model.FeeTier, error) {
	ctx, span := s.startSpan(ctx, "feetier.add", tier)
	defer span.End()

	tier.ID = 0
	if err := Validate(tier); err != nil {
		return nil, s.fail(span, "add fee tier", err)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		table, err := lockedTable(ctx, tx)
		if err != nil {
			return err
		}
		if other, ok := table.Conflict(tier); ok {
			return overlapError(tier, other)
		}
		return tx.FeeTiers().Create(ctx, &tier)
	})
	if err != nil {
		return nil, s.fail(span, "add fee tier", err)
	}

	s.logger.InfoContext(ctx, "fee tier added",
		"tier_id", tier.ID, "start", tier.DaysLateStart, "end", tier.DaysLateEnd, "fee_per_day", tier.FeePerDay.String())
	return &tier, nil
}

// Update replaces the range and rate of an existing tier. The tier's own
// current range is ignored by the overlap check.
func (s *service) Update(ctx context.Context, tier model.FeeTier) (*model.FeeTier, error) {
	ctx, span := s.startSpan(ctx, "feetier.update", tier)
	defer span.End()

	if tier.ID <= 0 {
		return nil, s.fail(span, "update fee tier", errs.Invalid("id", "must be positive"))
	}
	if err := Validate(tier); err != nil {
		return nil, s.fail(span, "update fee tier", err)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		table, err := lockedTable(ctx, tx)
		if err != nil {
			return err
		}
		current, err := tx.FeeTiers().Get(ctx, tier.ID)
		if err != nil {
			return err
		}
		tier.CreatedAt = current.CreatedAt
		if other, ok := table.Conflict(tier); ok {
			return overlapError(tier, other)
		}
		return tx.FeeTiers().Update(ctx, &tier)
	})
	if err != nil {
		return nil, s.fail(span, "update fee tier", err)
	}

	s.logger.InfoContext(ctx, "fee tier updated",
		"tier_id", tier.ID, "start", tier.DaysLateStart, "end", tier.DaysLateEnd, "fee_per_day", tier.FeePerDay.String())
	return &tier, nil
}

// Remove deletes a tier. Days it covered resolve to no fee afterwards.
func (s *service) Remove(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "feetier.remove", trace.WithAttributes(attribute.Int64("tier.id", id)))
	defer span.End()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.FeeTiers().Lock(ctx); err != nil {
			return err
		}
		return tx.FeeTiers().Delete(ctx, id)
	})
	if err != nil {
		return s.fail(span, "remove fee tier", err)
	}

	s.logger.InfoContext(ctx, "fee tier removed", "tier_id", id)
	return nil
}

func (s *service) List(ctx context.Context) ([]model.FeeTier, error) {
	table, err := s.table(ctx)
	if err != nil {
		return nil, err
	}
	return table.Tiers(), nil
}

func (s *service) Resolve(ctx context.Context, daysLate int) (money.Money, error) {
	table, err := s.table(ctx)
	if err != nil {
		return money.Zero(), err
	}
	return table.Resolve(daysLate), nil
}

// Gaps is the coverage diagnostic for administrators.
func (s *service) Gaps(ctx context.Context, start, end int) ([]Range, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d, %d]", errs.ErrInvalidRange, start, end)
	}
	table, err := s.table(ctx)
	if err != nil {
		return nil, err
	}
	gaps := table.Gaps(start, end)
	if len(gaps) > 0 {
		s.logger.DebugContext(ctx, "fee tier coverage has gaps", "start", start, "end", end, "gaps", len(gaps))
	}
	return gaps, nil
}

func (s *service) table(ctx context.Context) (Table, error) {
	var table Table
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		tiers, err := tx.FeeTiers().List(ctx)
		if err != nil {
			return err
		}
		table = NewTable(tiers)
		return nil
	})
	if err != nil {
		return Table{}, errs.Persist("list fee tiers", err)
	}
	return table, nil
}

// LoadTable reads the whole tier set through tx in one snapshot.
func LoadTable(ctx context.Context, tx store.Tx) (Table, error) {
	tiers, err := tx.FeeTiers().List(ctx)
	if err != nil {
		return Table{}, err
	}
	return NewTable(tiers), nil
}

func lockedTable(ctx context.Context, tx store.Tx) (Table, error) {
	if err := tx.FeeTiers().Lock(ctx); err != nil {
		return Table{}, err
	}
	return LoadTable(ctx, tx)
}

func overlapError(tier, other model.FeeTier) error {
	return fmt.Errorf("%w: [%d, %d] intersects tier %d [%d, %d]", errs.ErrOverlappingRange,
		tier.DaysLateStart, tier.DaysLateEnd, other.ID, other.DaysLateStart, other.DaysLateEnd)
}

func (s *service) startSpan(ctx context.Context, name string, tier model.FeeTier) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("tier.id", tier.ID),
		attribute.Int("tier.start", tier.DaysLateStart),
		attribute.Int("tier.end", tier.DaysLateEnd),
	))
}

func (s *service) fail(span trace.Span, op string, err error) error {
	err = errs.Persist(op, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errs.KindOf(err) == errs.KindPersistence {
		s.logger.Error(op+" failed", "error", err)
	}
	return err
}
