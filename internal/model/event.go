package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"movierental/internal/money"
)

const (
	EventRentalCheckedOut = "RentalCheckedOut"
	EventRentalReturned   = "RentalReturned"
)

// Event is one entry in a rental's append-only history. Versions start at 1
// and are contiguous per rental.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	AggregateID int64           `json:"rentalId"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type RentalCheckedOut struct {
	RentalID   int64       `json:"rentalId"`
	UserID     int64       `json:"userId"`
	TitleID    int64       `json:"movieId"`
	RentalDate string      `json:"rentalDate"`
	DueDate    string      `json:"dueDate"`
	BasePrice  money.Money `json:"basePrice"`
}

type RentalReturned struct {
	RentalID   int64       `json:"rentalId"`
	TitleID    int64       `json:"movieId"`
	ReturnDate string      `json:"returnDate"`
	DaysLate   int         `json:"daysLate"`
	LateFee    money.Money `json:"lateFee"`
	TotalPrice money.Money `json:"totalPrice"`
}

// NewEvent marshals payload into an event for the given rental version.
func NewEvent(rentalID int64, eventType string, version int, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New(),
		AggregateID: rentalID,
		Type:        eventType,
		Data:        data,
		Version:     version,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
