package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierental/internal/money"
)

func date(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRentalJSONFieldNames(t *testing.T) {
	r := Rental{
		ID:         3,
		UserID:     7,
		TitleID:    11,
		RentalDate: date("2024-03-01"),
		DueDate:    date("2024-03-08"),
		BasePrice:  money.MustParse("5"),
		LateFee:    money.Zero(),
		TotalPrice: money.MustParse("5"),
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 3, "userId": 7, "movieId": 11,
		"rentalDate": "2024-03-01", "dueDate": "2024-03-08", "returnDate": null,
		"basePrice": 5.00, "lateFee": 0.00, "totalPrice": 5.00
	}`, string(b))

	returned := date("2024-03-09")
	r.ReturnDate = &returned
	b, err = json.Marshal(r)
	require.NoError(t, err)

	var back Rental
	require.NoError(t, json.Unmarshal(b, &back))
	require.NotNil(t, back.ReturnDate)
	assert.Equal(t, returned, *back.ReturnDate)
	assert.False(t, back.IsOpen())
	assert.True(t, back.BasePrice.Equal(r.BasePrice))
}

func TestDaysLate(t *testing.T) {
	due := date("2024-03-08")

	assert.Equal(t, 0, DaysLate(due, date("2024-03-01")))
	assert.Equal(t, 0, DaysLate(due, due))
	assert.Equal(t, 1, DaysLate(due, date("2024-03-09")))
	assert.Equal(t, 31, DaysLate(due, date("2024-04-08")))
	assert.Equal(t, 1, DaysLate(due, time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)))
}

func TestDueDate(t *testing.T) {
	assert.Equal(t, date("2024-03-08"), DueDate(time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, date("2025-01-03"), DueDate(date("2024-12-27")))
}

func TestRentalFilter(t *testing.T) {
	open := &Rental{TitleID: 1, DueDate: date("2024-03-08")}
	closedAt := date("2024-03-05")
	closed := &Rental{TitleID: 2, DueDate: date("2024-03-08"), ReturnDate: &closedAt}
	today := date("2024-03-09")

	assert.True(t, RentalFilter{View: AllRentals}.Match(closed))
	assert.True(t, RentalFilter{View: ActiveRentals}.Match(open))
	assert.False(t, RentalFilter{View: ActiveRentals}.Match(closed))
	assert.True(t, RentalFilter{View: OverdueRentals, AsOf: today}.Match(open))
	assert.False(t, RentalFilter{View: OverdueRentals, AsOf: date("2024-03-08")}.Match(open))
	assert.False(t, RentalFilter{View: AllRentals, TitleID: 1}.Match(closed))

	v, ok := ParseRentalView("overdue")
	assert.True(t, ok)
	assert.Equal(t, OverdueRentals, v)
	_, ok = ParseRentalView("late")
	assert.False(t, ok)
}
