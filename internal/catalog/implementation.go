package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/store"
)

// service implements the Service interface.
type service struct {
	store  store.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(s store.Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:  s,
		logger: logger.With("component", "catalog"),
		tracer: otel.Tracer("movierental/catalog"),
	}
}

// AddTitle stocks a new title. pricingCategoryID may be zero.
func (s *service) AddTitle(ctx context.Context, name, genre string, copies int, pricingCategoryID int64) (*TitleView, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_title", trace.WithAttributes(
		attribute.String("title.name", name),
		attribute.Int("title.copies", copies),
	))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("name", "is required")
	}
	if copies < 0 {
		return nil, errs.Invalid("copies", "must not be negative")
	}

	title := &model.Title{
		Name:              name,
		Genre:             strings.TrimSpace(genre),
		TotalCopies:       copies,
		AvailableCopies:   copies,
		PricingCategoryID: pricingCategoryID,
	}
	var view *TitleView
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if pricingCategoryID != 0 {
			if _, err := tx.Catalog().GetPricingCategory(ctx, pricingCategoryID); err != nil {
				return err
			}
		}
		if err := tx.Catalog().CreateTitle(ctx, title); err != nil {
			return err
		}
		var err error
		view, err = viewOf(ctx, tx, title)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, errs.Persist("add title", err)
	}

	s.logger.InfoContext(ctx, "title added", "title_id", title.ID, "name", title.Name, "copies", copies)
	return view, nil
}

func (s *service) GetTitle(ctx context.Context, id int64) (*TitleView, error) {
	var view *TitleView
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		title, err := tx.Catalog().GetTitle(ctx, id)
		if err != nil {
			return err
		}
		view, err = viewOf(ctx, tx, title)
		return err
	})
	if err != nil {
		return nil, errs.Persist("get title", err)
	}
	return view, nil
}

func (s *service) ListTitles(ctx context.Context, availableOnly bool) ([]*TitleView, error) {
	views := []*TitleView{}
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		titles, err := tx.Catalog().ListTitles(ctx)
		if err != nil {
			return err
		}
		for _, t := range titles {
			if availableOnly && t.AvailableCopies <= 0 {
				continue
			}
			view, err := viewOf(ctx, tx, t)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Persist("list titles", err)
	}
	return views, nil
}

// UpdateTitle changes a title's name and genre.
func (s *service) UpdateTitle(ctx context.Context, id int64, name, genre string) (*TitleView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("name", "is required")
	}

	var view *TitleView
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Catalog().UpdateTitle(ctx, id, name, strings.TrimSpace(genre)); err != nil {
			return err
		}
		title, err := tx.Catalog().GetTitle(ctx, id)
		if err != nil {
			return err
		}
		view, err = viewOf(ctx, tx, title)
		return err
	})
	if err != nil {
		return nil, errs.Persist("update title", err)
	}

	s.logger.InfoContext(ctx, "title updated", "title_id", id, "name", view.Name, "genre", view.Genre)
	return view, nil
}

func (s *service) AddCopies(ctx context.Context, titleID int64, n int) (*TitleView, error) {
	if n <= 0 {
		return nil, errs.Invalid("copies", "must be positive")
	}
	var view *TitleView
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Inventory().AddCopies(ctx, titleID, n); err != nil {
			return err
		}
		title, err := tx.Catalog().GetTitle(ctx, titleID)
		if err != nil {
			return err
		}
		view, err = viewOf(ctx, tx, title)
		return err
	})
	if err != nil {
		return nil, errs.Persist("add copies", err)
	}

	s.logger.InfoContext(ctx, "copies added", "title_id", titleID, "added", n, "total", view.TotalCopies)
	return view, nil
}

func (s *service) CurrentPrice(ctx context.Context, titleID int64) (money.Money, error) {
	var price money.Money
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Catalog().GetTitle(ctx, titleID); err != nil {
			return err
		}
		pricing, err := tx.Catalog().PricingForTitle(ctx, titleID)
		if err != nil {
			return err
		}
		price = pricing.BasePrice
		return nil
	})
	if err != nil {
		return money.Zero(), errs.Persist("current price", err)
	}
	return price, nil
}

// AssignPricing changes the price future checkouts capture. Open rentals
// keep the price they were checked out at.
func (s *service) AssignPricing(ctx context.Context, titleID, categoryID int64) (*TitleView, error) {
	var view *TitleView
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Catalog().AssignPricing(ctx, titleID, categoryID); err != nil {
			return err
		}
		title, err := tx.Catalog().GetTitle(ctx, titleID)
		if err != nil {
			return err
		}
		view, err = viewOf(ctx, tx, title)
		return err
	})
	if err != nil {
		return nil, errs.Persist("assign pricing", err)
	}

	s.logger.InfoContext(ctx, "pricing assigned", "title_id", titleID, "pricing_category_id", categoryID)
	return view, nil
}

// RemoveTitle deletes a title nobody has ever rented. Titles with open
// rentals, or with rental history, are refused so no rental is orphaned.
func (s *service) RemoveTitle(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "catalog.remove_title", trace.WithAttributes(attribute.Int64("title.id", id)))
	defer span.End()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Catalog().GetTitle(ctx, id); err != nil {
			return err
		}
		open, total, err := tx.Rentals().CountByTitle(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case open > 0:
			return errs.ErrTitleHasOpenRentals
		case total > 0:
			return errs.ErrTitleReferenced
		}
		return tx.Catalog().DeleteTitle(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		return errs.Persist("remove title", err)
	}

	s.logger.InfoContext(ctx, "title removed", "title_id", id)
	return nil
}

func (s *service) CreatePricingCategory(ctx context.Context, name string, basePrice money.Money) (*model.PricingCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid("name", "is required")
	}
	if err := money.NonNegative(basePrice); err != nil {
		return nil, err
	}

	category := &model.PricingCategory{Name: name, BasePrice: basePrice}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Catalog().CreatePricingCategory(ctx, category)
	})
	if err != nil {
		return nil, errs.Persist("create pricing category", err)
	}

	s.logger.InfoContext(ctx, "pricing category created", "pricing_category_id", category.ID, "name", name, "base_price", basePrice.String())
	return category, nil
}

func (s *service) ListPricingCategories(ctx context.Context) ([]*model.PricingCategory, error) {
	categories := []*model.PricingCategory{}
	err := s.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.Catalog().ListPricingCategories(ctx)
		categories = append(categories, list...)
		return err
	})
	if err != nil {
		return nil, errs.Persist("list pricing categories", err)
	}
	return categories, nil
}

func viewOf(ctx context.Context, tx store.Tx, title *model.Title) (*TitleView, error) {
	view := &TitleView{Title: *title}
	pricing, err := tx.Catalog().PricingForTitle(ctx, title.ID)
	switch {
	case err == nil:
		price := pricing.BasePrice
		view.CurrentPrice = &price
	case errors.Is(err, errs.ErrNoPricingSet):
	default:
		return nil, err
	}
	return view, nil
}
