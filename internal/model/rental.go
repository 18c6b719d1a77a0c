package model

import (
	"encoding/json"
	"fmt"
	"time"

	"movierental/internal/money"
)

// DateLayout is the wire format of rental dates.
const DateLayout = "2006-01-02"

// LoanPeriodDays is the fixed time between checkout and due date.
const LoanPeriodDays = 7

// Rental is Open while ReturnDate is nil and immutable once Closed.
type Rental struct {
	ID         int64
	UserID     int64
	TitleID    int64
	RentalDate time.Time
	DueDate    time.Time
	ReturnDate *time.Time
	BasePrice  money.Money
	LateFee    money.Money
	TotalPrice money.Money
	CreatedAt  time.Time
}

func (r *Rental) IsOpen() bool { return r.ReturnDate == nil }

type rentalJSON struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"userId"`
	TitleID    int64       `json:"movieId"`
	RentalDate string      `json:"rentalDate"`
	DueDate    string      `json:"dueDate"`
	ReturnDate *string     `json:"returnDate"`
	BasePrice  money.Money `json:"basePrice"`
	LateFee    money.Money `json:"lateFee"`
	TotalPrice money.Money `json:"totalPrice"`
}

func (r Rental) MarshalJSON() ([]byte, error) {
	out := rentalJSON{
		ID:         r.ID,
		UserID:     r.UserID,
		TitleID:    r.TitleID,
		RentalDate: FormatDate(r.RentalDate),
		DueDate:    FormatDate(r.DueDate),
		BasePrice:  r.BasePrice,
		LateFee:    r.LateFee,
		TotalPrice: r.TotalPrice,
	}
	if r.ReturnDate != nil {
		s := FormatDate(*r.ReturnDate)
		out.ReturnDate = &s
	}
	return json.Marshal(out)
}

func (r *Rental) UnmarshalJSON(b []byte) error {
	var in rentalJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	rentalDate, err := ParseDate(in.RentalDate)
	if err != nil {
		return fmt.Errorf("rentalDate: %w", err)
	}
	dueDate, err := ParseDate(in.DueDate)
	if err != nil {
		return fmt.Errorf("dueDate: %w", err)
	}
	*r = Rental{
		ID:         in.ID,
		UserID:     in.UserID,
		TitleID:    in.TitleID,
		RentalDate: rentalDate,
		DueDate:    dueDate,
		BasePrice:  in.BasePrice,
		LateFee:    in.LateFee,
		TotalPrice: in.TotalPrice,
	}
	if in.ReturnDate != nil {
		returned, err := ParseDate(*in.ReturnDate)
		if err != nil {
			return fmt.Errorf("returnDate: %w", err)
		}
		r.ReturnDate = &returned
	}
	return nil
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DaysLate is the number of whole days from due to returned, floored at 0.
func DaysLate(due, returned time.Time) int {
	days := int(Day(returned).Sub(Day(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DueDate returns the due date for a rental starting on rentalDate.
func DueDate(rentalDate time.Time) time.Time {
	return Day(rentalDate).AddDate(0, 0, LoanPeriodDays)
}

// RentalView selects one of the rental query views.
type RentalView int

const (
	AllRentals RentalView = iota
	ActiveRentals
	OverdueRentals
)

func (v RentalView) String() string {
	switch v {
	case ActiveRentals:
		return "active"
	case OverdueRentals:
		return "overdue"
	default:
		return "all"
	}
}

// ParseRentalView maps "", "all", "active" and "overdue" to a view.
func ParseRentalView(s string) (RentalView, bool) {
	switch s {
	case "", "all":
		return AllRentals, true
	case "active":
		return ActiveRentals, true
	case "overdue":
		return OverdueRentals, true
	}
	return AllRentals, false
}

// RentalFilter parameterizes RentalRepo.List. AsOf is the "today" used by
// OverdueRentals; TitleID, when set, narrows any view to one title.
type RentalFilter struct {
	View    RentalView
	AsOf    time.Time
	TitleID int64
}

// Match applies the filter to a single rental.
func (f RentalFilter) Match(r *Rental) bool {
	if f.TitleID != 0 && r.TitleID != f.TitleID {
		return false
	}
	switch f.View {
	case ActiveRentals:
		return r.IsOpen()
	case OverdueRentals:
		return r.IsOpen() && r.DueDate.Before(Day(f.AsOf))
	default:
		return true
	}
}
