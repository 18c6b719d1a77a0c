package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
)

type rentalRepo struct{ tx *sql.Tx }

const rentalColumns = `id, user_id, title_id, rental_date, due_date, return_date, base_price, late_fee, total_price, created_at`

func scanRental(row interface{ Scan(...any) error }) (*model.Rental, error) {
	r := &model.Rental{}
	var returned sql.NullTime
	if err := row.Scan(&r.ID, &r.UserID, &r.TitleID, &r.RentalDate, &r.DueDate, &returned,
		&r.BasePrice, &r.LateFee, &r.TotalPrice, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.RentalDate = model.Day(r.RentalDate)
	r.DueDate = model.Day(r.DueDate)
	if returned.Valid {
		day := model.Day(returned.Time)
		r.ReturnDate = &day
	}
	return r, nil
}

// Dates are bound as text so the session time zone cannot shift them.
func (r rentalRepo) CreateOpen(ctx context.Context, rental *model.Rental) error {
	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO rentals (user_id, title_id, rental_date, due_date, base_price, late_fee, total_price)
		VALUES ($1, $2, $3::date, $4::date, $5, 0, $5)
		RETURNING id, created_at
	`, rental.UserID, rental.TitleID, model.FormatDate(rental.RentalDate), model.FormatDate(rental.DueDate),
		rental.BasePrice).Scan(&rental.ID, &rental.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	rental.ReturnDate = nil
	rental.LateFee = money.Zero()
	rental.TotalPrice = rental.BasePrice
	return nil
}

func (r rentalRepo) Get(ctx context.Context, id int64) (*model.Rental, error) {
	return r.get(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1`, id)
}

func (r rentalRepo) GetForUpdate(ctx context.Context, id int64) (*model.Rental, error) {
	return r.get(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1 FOR UPDATE`, id)
}

func (r rentalRepo) get(ctx context.Context, query string, id int64) (*model.Rental, error) {
	rental, err := scanRental(r.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrRentalNotFound
	}
	if err != nil {
		return nil, err
	}
	return rental, nil
}

func (r rentalRepo) Close(ctx context.Context, id int64, returnDate time.Time, lateFee money.Money) (*model.Rental, error) {
	rental, err := scanRental(r.tx.QueryRowContext(ctx, `
		UPDATE rentals
		SET return_date = $2::date, late_fee = $3::numeric, total_price = base_price + $3::numeric
		WHERE id = $1 AND return_date IS NULL
		RETURNING `+rentalColumns,
		id, model.FormatDate(returnDate), lateFee))
	if err == nil {
		return rental, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError(err)
	}

	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, errs.ErrAlreadyClosed
}

func (r rentalRepo) List(ctx context.Context, f model.RentalFilter) ([]*model.Rental, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	order := "rental_date DESC, id DESC"
	switch f.View {
	case model.ActiveRentals:
		where = append(where, "return_date IS NULL")
		order = "due_date ASC, id ASC"
	case model.OverdueRentals:
		where = append(where, "return_date IS NULL", "due_date < "+arg(model.FormatDate(f.AsOf))+"::date")
		order = "due_date ASC, id ASC"
	}
	if f.TitleID != 0 {
		where = append(where, "title_id = "+arg(f.TitleID))
	}

	query := `SELECT ` + rentalColumns + ` FROM rentals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Rental
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rental)
	}
	return out, rows.Err()
}

func (r rentalRepo) CountByTitle(ctx context.Context, titleID int64) (open, total int, err error) {
	err = r.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE return_date IS NULL), COUNT(*)
		FROM rentals
		WHERE title_id = $1
	`, titleID).Scan(&open, &total)
	return open, total, err
}
