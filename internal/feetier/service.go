package feetier

import (
	"context"

	"movierental/internal/model"
	"movierental/internal/money"
)

// Service administers the fee tier table. Mutations are validated against
// every other tier inside the same transaction that writes them.
type Service interface {
	Add(ctx context.Context, tier model.FeeTier) (*model.FeeTier, error)
	Update(ctx context.Context, tier model.FeeTier) (*model.FeeTier, error)
	Remove(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.FeeTier, error)
	Resolve(ctx context.Context, daysLate int) (money.Money, error)
	Gaps(ctx context.Context, start, end int) ([]Range, error)
}
