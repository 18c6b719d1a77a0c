package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"movierental/internal/errs"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeExclusionViolation  = "23P01"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// mapError translates constraint violations into domain errors. Anything
// else is returned unchanged and later classified as a persistence error.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		if pqErr.Constraint == "pricing_categories_name_key" {
			return errs.ErrDuplicateCategory
		}
		return fmt.Errorf("%w: %s", errs.ErrConcurrencyConflict, pqErr.Constraint)
	case codeForeignKeyViolation:
		if pqErr.Table == "titles" {
			return errs.ErrPricingCategoryNotFound
		}
		return errs.ErrTitleReferenced
	case codeExclusionViolation:
		return errs.ErrOverlappingRange
	case codeCheckViolation:
		return errs.Inconsistent("check constraint %s on %s", pqErr.Constraint, pqErr.Table)
	case codeSerialization, codeDeadlock:
		return fmt.Errorf("%w: %s", errs.ErrConcurrencyConflict, pqErr.Message)
	}
	return err
}
