package postgres

import (
	"context"
	"database/sql"
	"errors"

	"movierental/internal/errs"
	"movierental/internal/model"
)

type feeTierRepo struct{ tx *sql.Tx }

// Lock blocks other tier mutations but not plain reads, so an in-flight
// Return keeps resolving against the last committed set.
func (r feeTierRepo) Lock(ctx context.Context) error {
	_, err := r.tx.ExecContext(ctx, `LOCK TABLE late_fees IN SHARE ROW EXCLUSIVE MODE`)
	return err
}

func (r feeTierRepo) List(ctx context.Context) ([]model.FeeTier, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, days_late_start, days_late_end, fee_per_day, created_at
		FROM late_fees
		ORDER BY days_late_start, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FeeTier
	for rows.Next() {
		var t model.FeeTier
		if err := rows.Scan(&t.ID, &t.DaysLateStart, &t.DaysLateEnd, &t.FeePerDay, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r feeTierRepo) Get(ctx context.Context, id int64) (*model.FeeTier, error) {
	t := &model.FeeTier{}
	err := r.tx.QueryRowContext(ctx, `
		SELECT id, days_late_start, days_late_end, fee_per_day, created_at
		FROM late_fees WHERE id = $1
	`, id).Scan(&t.ID, &t.DaysLateStart, &t.DaysLateEnd, &t.FeePerDay, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrFeeTierNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r feeTierRepo) Create(ctx context.Context, t *model.FeeTier) error {
	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO late_fees (days_late_start, days_late_end, fee_per_day)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, t.DaysLateStart, t.DaysLateEnd, t.FeePerDay).Scan(&t.ID, &t.CreatedAt)
	return mapError(err)
}

func (r feeTierRepo) Update(ctx context.Context, t *model.FeeTier) error {
	err := r.tx.QueryRowContext(ctx, `
		UPDATE late_fees
		SET days_late_start = $2, days_late_end = $3, fee_per_day = $4
		WHERE id = $1
		RETURNING created_at
	`, t.ID, t.DaysLateStart, t.DaysLateEnd, t.FeePerDay).Scan(&t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrFeeTierNotFound
	}
	return mapError(err)
}

func (r feeTierRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM late_fees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffected(res, errs.ErrFeeTierNotFound)
}
