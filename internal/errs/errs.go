// Package errs defines the typed errors returned across the rental system.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on it.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindPersistence
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindPersistence:
		return "persistence"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified error. Code is stable and safe to expose on the wire.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a sentinel error of the given kind.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	ErrTitleNotFound           = New(KindNotFound, "title_not_found", "title not found")
	ErrNoPricingSet            = New(KindNotFound, "no_pricing_set", "no pricing category set for title")
	ErrPricingCategoryNotFound = New(KindNotFound, "pricing_category_not_found", "pricing category not found")
	ErrRentalNotFound          = New(KindNotFound, "rental_not_found", "rental not found")
	ErrFeeTierNotFound         = New(KindNotFound, "fee_tier_not_found", "fee tier not found")

	ErrNoCopiesAvailable   = New(KindConflict, "no_copies_available", "no copies available")
	ErrAlreadyReturned     = New(KindConflict, "already_returned", "rental already returned")
	ErrOverlappingRange    = New(KindConflict, "overlapping_range", "fee tier range overlaps an existing tier")
	ErrTitleHasOpenRentals = New(KindConflict, "title_has_open_rentals", "title has open rentals")
	ErrTitleReferenced     = New(KindConflict, "title_referenced", "title is referenced by rental history")
	ErrDuplicateCategory   = New(KindConflict, "duplicate_category", "pricing category name already exists")
	ErrConcurrencyConflict = New(KindConflict, "concurrency_conflict", "concurrency conflict: version mismatch")

	ErrInvalidAmount = New(KindValidation, "invalid_amount", "invalid amount")
	ErrInvalidRange  = New(KindValidation, "invalid_range", "invalid days-late range")
	ErrInvalidInput  = New(KindValidation, "invalid_input", "invalid input")

	ErrInconsistent = New(KindInternal, "internal_consistency", "internal consistency violation")
)

// ErrAlreadyClosed is the storage-level name for a second close of a rental.
var ErrAlreadyClosed = ErrAlreadyReturned

// Persist wraps a storage failure. Errors that are already classified pass
// through with op context added.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: KindPersistence, Code: "persistence_error", Msg: op, Err: err}
}

// Invalid reports a rejected input field.
func Invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, msg)
}

// Inconsistent reports a violated post-condition on stored state.
func Inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the wire code of err, or "internal_error" when unclassified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// IsNotFound reports whether err is any not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is any conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// ByCode returns the sentinel registered for code, if any.
func ByCode(code string) (*Error, bool) {
	e, ok := byCode[code]
	return e, ok
}

var byCode = func() map[string]*Error {
	m := make(map[string]*Error)
	for _, e := range []*Error{
		ErrTitleNotFound, ErrNoPricingSet, ErrPricingCategoryNotFound, ErrRentalNotFound,
		ErrFeeTierNotFound, ErrNoCopiesAvailable, ErrAlreadyReturned, ErrOverlappingRange,
		ErrTitleHasOpenRentals, ErrTitleReferenced, ErrDuplicateCategory, ErrConcurrencyConflict,
		ErrInvalidAmount, ErrInvalidRange, ErrInvalidInput, ErrInconsistent,
	} {
		m[e.Code] = e
	}
	return m
}()
