package boltstore

import (
	"context"

	"movierental/internal/errs"
)

type inventoryLedger struct{ *tx }

func (l inventoryLedger) DecrementIfAvailable(ctx context.Context, titleID int64) error {
	rec, err := catalogRepo(l).title(titleID)
	if err != nil {
		return err
	}
	if rec.AvailableCopies <= 0 {
		if rec.AvailableCopies < 0 {
			return errs.Inconsistent("title %d has %d available copies", titleID, rec.AvailableCopies)
		}
		return errs.ErrNoCopiesAvailable
	}
	rec.AvailableCopies--
	return l.put(bucketTitles, titleID, rec)
}

func (l inventoryLedger) Increment(ctx context.Context, titleID int64) error {
	rec, err := catalogRepo(l).title(titleID)
	if err != nil {
		return err
	}
	if rec.AvailableCopies+1 > rec.TotalCopies {
		return errs.Inconsistent("title %d would have %d of %d copies available",
			titleID, rec.AvailableCopies+1, rec.TotalCopies)
	}
	rec.AvailableCopies++
	return l.put(bucketTitles, titleID, rec)
}

func (l inventoryLedger) AddCopies(ctx context.Context, titleID int64, n int) error {
	if n <= 0 {
		return errs.Invalid("copies", "must be positive")
	}
	rec, err := catalogRepo(l).title(titleID)
	if err != nil {
		return err
	}
	rec.TotalCopies += n
	rec.AvailableCopies += n
	return l.put(bucketTitles, titleID, rec)
}

func (l inventoryLedger) Available(ctx context.Context, titleID int64) (int, error) {
	rec, err := catalogRepo(l).title(titleID)
	if err != nil {
		return 0, err
	}
	return rec.AvailableCopies, nil
}
