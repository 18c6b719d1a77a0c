package model

import (
	"time"

	"movierental/internal/money"
)

// FeeTier charges FeePerDay for every day late when the days-late count
// falls in [DaysLateStart, DaysLateEnd].
type FeeTier struct {
	ID            int64       `json:"id"`
	DaysLateStart int         `json:"daysLateStart"`
	DaysLateEnd   int         `json:"daysLateEnd"`
	FeePerDay     money.Money `json:"feePerDay"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Contains reports whether days falls inside the tier, inclusive.
func (t FeeTier) Contains(days int) bool {
	return days >= t.DaysLateStart && days <= t.DaysLateEnd
}
