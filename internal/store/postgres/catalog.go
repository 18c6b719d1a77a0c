package postgres

import (
	"context"
	"database/sql"
	"errors"

	"movierental/internal/errs"
	"movierental/internal/model"
)

type catalogRepo struct{ tx *sql.Tx }

const titleColumns = `id, name, genre, total_copies, available_copies, COALESCE(pricing_category_id, 0), created_at`

func scanTitle(row interface{ Scan(...any) error }) (*model.Title, error) {
	t := &model.Title{}
	err := row.Scan(&t.ID, &t.Name, &t.Genre, &t.TotalCopies, &t.AvailableCopies, &t.PricingCategoryID, &t.CreatedAt)
	return t, err
}

func (r catalogRepo) CreateTitle(ctx context.Context, t *model.Title) error {
	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO titles (name, genre, total_copies, available_copies, pricing_category_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0))
		RETURNING id, created_at
	`, t.Name, t.Genre, t.TotalCopies, t.AvailableCopies, t.PricingCategoryID).Scan(&t.ID, &t.CreatedAt)
	return mapError(err)
}

func (r catalogRepo) GetTitle(ctx context.Context, id int64) (*model.Title, error) {
	t, err := scanTitle(r.tx.QueryRowContext(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrTitleNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r catalogRepo) ListTitles(ctx context.Context) ([]*model.Title, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+titleColumns+` FROM titles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r catalogRepo) UpdateTitle(ctx context.Context, id int64, name, genre string) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE titles SET name = $2, genre = $3 WHERE id = $1`, id, name, genre)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(res, errs.ErrTitleNotFound)
}

func (r catalogRepo) DeleteTitle(ctx context.Context, id int64) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM titles WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(res, errs.ErrTitleNotFound)
}

func (r catalogRepo) CreatePricingCategory(ctx context.Context, c *model.PricingCategory) error {
	err := r.tx.QueryRowContext(ctx, `
		INSERT INTO pricing_categories (name, base_price)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, c.Name, c.BasePrice).Scan(&c.ID, &c.CreatedAt)
	return mapError(err)
}

func (r catalogRepo) GetPricingCategory(ctx context.Context, id int64) (*model.PricingCategory, error) {
	c := &model.PricingCategory{}
	err := r.tx.QueryRowContext(ctx, `
		SELECT id, name, base_price, created_at FROM pricing_categories WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.BasePrice, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrPricingCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r catalogRepo) ListPricingCategories(ctx context.Context) ([]*model.PricingCategory, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, name, base_price, created_at FROM pricing_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PricingCategory
	for rows.Next() {
		c := &model.PricingCategory{}
		if err := rows.Scan(&c.ID, &c.Name, &c.BasePrice, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r catalogRepo) AssignPricing(ctx context.Context, titleID, categoryID int64) error {
	if _, err := r.GetPricingCategory(ctx, categoryID); err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, `UPDATE titles SET pricing_category_id = $2 WHERE id = $1`, titleID, categoryID)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(res, errs.ErrTitleNotFound)
}

func (r catalogRepo) PricingForTitle(ctx context.Context, titleID int64) (*model.PricingCategory, error) {
	var categoryID sql.NullInt64
	err := r.tx.QueryRowContext(ctx, `SELECT pricing_category_id FROM titles WHERE id = $1`, titleID).Scan(&categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrTitleNotFound
	}
	if err != nil {
		return nil, err
	}
	if !categoryID.Valid {
		return nil, errs.ErrNoPricingSet
	}
	return r.GetPricingCategory(ctx, categoryID.Int64)
}
