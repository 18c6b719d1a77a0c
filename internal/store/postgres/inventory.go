package postgres

import (
	"context"
	"database/sql"
	"errors"

	"movierental/internal/errs"
)

type inventoryLedger struct{ tx *sql.Tx }

// DecrementIfAvailable is one guarded UPDATE, so two concurrent callers on
// the last copy cannot both succeed: the second blocks on the row lock and
// then re-evaluates available_copies > 0.
func (l inventoryLedger) DecrementIfAvailable(ctx context.Context, titleID int64) error {
	var available int
	err := l.tx.QueryRowContext(ctx, `
		UPDATE titles
		SET available_copies = available_copies - 1
		WHERE id = $1 AND available_copies > 0
		RETURNING available_copies
	`, titleID).Scan(&available)
	if err == nil {
		if available < 0 {
			return errs.Inconsistent("title %d has %d available copies", titleID, available)
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return mapError(err)
	}

	current, err := l.Available(ctx, titleID)
	if err != nil {
		return err
	}
	if current < 0 {
		return errs.Inconsistent("title %d has %d available copies", titleID, current)
	}
	return errs.ErrNoCopiesAvailable
}

func (l inventoryLedger) Increment(ctx context.Context, titleID int64) error {
	var available, total int
	err := l.tx.QueryRowContext(ctx, `
		UPDATE titles
		SET available_copies = available_copies + 1
		WHERE id = $1
		RETURNING available_copies, total_copies
	`, titleID).Scan(&available, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrTitleNotFound
	}
	if err != nil {
		return mapError(err)
	}
	if available > total {
		return errs.Inconsistent("title %d would have %d of %d copies available", titleID, available, total)
	}
	return nil
}

func (l inventoryLedger) AddCopies(ctx context.Context, titleID int64, n int) error {
	if n <= 0 {
		return errs.Invalid("copies", "must be positive")
	}
	res, err := l.tx.ExecContext(ctx, `
		UPDATE titles
		SET total_copies = total_copies + $2, available_copies = available_copies + $2
		WHERE id = $1
	`, titleID, n)
	if err != nil {
		return mapError(err)
	}
	return rowsAffected(res, errs.ErrTitleNotFound)
}

func (l inventoryLedger) Available(ctx context.Context, titleID int64) (int, error) {
	var available int
	err := l.tx.QueryRowContext(ctx, `SELECT available_copies FROM titles WHERE id = $1`, titleID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errs.ErrTitleNotFound
	}
	return available, err
}
