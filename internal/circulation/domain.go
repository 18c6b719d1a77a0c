package circulation

import (
	"context"
	"time"

	"movierental/internal/model"
)

// Clock supplies the current date to the engine.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// Notifier receives rental events after they are committed.
type Notifier interface {
	Publish(ctx context.Context, event model.Event) error
}

// Discrepancy is a title whose stored availability disagrees with its open
// rentals.
type Discrepancy struct {
	TitleID     int64 `json:"movieId"`
	Available   int   `json:"availableCopies"`
	OpenRentals int   `json:"openRentals"`
	TotalCopies int   `json:"totalCopies"`
}

func (d Discrepancy) Negative() bool { return d.Available < 0 }
