package boltstore

import (
	"context"
	"sort"
	"time"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
)

type rentalRepo struct{ *tx }

func (r rentalRepo) CreateOpen(ctx context.Context, rental *model.Rental) error {
	id, err := r.nextID(bucketRentals)
	if err != nil {
		return err
	}
	rental.ID = id
	rental.ReturnDate = nil
	rental.LateFee = money.Zero()
	rental.TotalPrice = rental.BasePrice
	rental.CreatedAt = time.Now().UTC()
	return r.put(bucketRentals, id, toRentalRecord(rental))
}

func (r rentalRepo) Get(ctx context.Context, id int64) (*model.Rental, error) {
	var rec rentalRecord
	ok, err := r.get(bucketRentals, id, &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrRentalNotFound
	}
	return rec.toModel(), nil
}

// GetForUpdate needs no extra lock: the write transaction already excludes
// every other writer.
func (r rentalRepo) GetForUpdate(ctx context.Context, id int64) (*model.Rental, error) {
	return r.Get(ctx, id)
}

func (r rentalRepo) Close(ctx context.Context, id int64, returnDate time.Time, lateFee money.Money) (*model.Rental, error) {
	rental, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rental.IsOpen() {
		return nil, errs.ErrAlreadyClosed
	}
	day := model.Day(returnDate)
	rental.ReturnDate = &day
	rental.LateFee = lateFee
	rental.TotalPrice = rental.BasePrice.Add(lateFee)
	if err := r.put(bucketRentals, id, toRentalRecord(rental)); err != nil {
		return nil, err
	}
	return rental, nil
}

func (r rentalRepo) List(ctx context.Context, f model.RentalFilter) ([]*model.Rental, error) {
	var out []*model.Rental
	err := each(r.tx, bucketRentals, func(rec *rentalRecord) error {
		rental := rec.toModel()
		if f.Match(rental) {
			out = append(out, rental)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRentals(out, f.View)
	return out, nil
}

func (r rentalRepo) CountByTitle(ctx context.Context, titleID int64) (open, total int, err error) {
	err = each(r.tx, bucketRentals, func(rec *rentalRecord) error {
		if rec.TitleID != titleID {
			return nil
		}
		total++
		if rec.ReturnDate == nil {
			open++
		}
		return nil
	})
	return open, total, err
}

func sortRentals(rentals []*model.Rental, view model.RentalView) {
	if view == model.AllRentals {
		sort.SliceStable(rentals, func(i, j int) bool {
			a, b := rentals[i], rentals[j]
			if !a.RentalDate.Equal(b.RentalDate) {
				return a.RentalDate.After(b.RentalDate)
			}
			return a.ID > b.ID
		})
		return
	}
	sort.SliceStable(rentals, func(i, j int) bool {
		a, b := rentals[i], rentals[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
}
