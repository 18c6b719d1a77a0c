package catalog

import (
	"context"

	"movierental/internal/model"
	"movierental/internal/money"
)

// Service manages titles, their stock and their pricing.
type Service interface {
	AddTitle(ctx context.Context, name, genre string, copies int, pricingCategoryID int64) (*TitleView, error)
	GetTitle(ctx context.Context, id int64) (*TitleView, error)
	ListTitles(ctx context.Context, availableOnly bool) ([]*TitleView, error)
	UpdateTitle(ctx context.Context, id int64, name, genre string) (*TitleView, error)
	AddCopies(ctx context.Context, titleID int64, n int) (*TitleView, error)
	// CurrentPrice fails with errs.ErrNoPricingSet when no category is assigned.
	CurrentPrice(ctx context.Context, titleID int64) (money.Money, error)
	AssignPricing(ctx context.Context, titleID, categoryID int64) (*TitleView, error)
	RemoveTitle(ctx context.Context, id int64) error
	CreatePricingCategory(ctx context.Context, name string, basePrice money.Money) (*model.PricingCategory, error)
	ListPricingCategories(ctx context.Context) ([]*model.PricingCategory, error)
}
