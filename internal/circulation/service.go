package circulation

import (
	"context"

	"movierental/internal/model"
)

// Service is the rental lifecycle seen by the HTTP layer and other callers.
type Service interface {
	Checkout(ctx context.Context, userID, titleID int64) (*model.Rental, error)
	Return(ctx context.Context, rentalID int64) (*model.Rental, error)
	Get(ctx context.Context, rentalID int64) (*model.Rental, error)
	List(ctx context.Context, view model.RentalView) ([]*model.Rental, error)
	ListActive(ctx context.Context) ([]*model.Rental, error)
	ListOverdue(ctx context.Context) ([]*model.Rental, error)
	ListAll(ctx context.Context) ([]*model.Rental, error)
	History(ctx context.Context, rentalID int64) ([]model.Event, error)
	Audit(ctx context.Context) ([]Discrepancy, error)
}
