package boltstore

import (
	"time"

	"movierental/internal/model"
	"movierental/internal/money"
)

type titleRecord struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Genre             string    `json:"genre"`
	TotalCopies       int       `json:"total_copies"`
	AvailableCopies   int       `json:"available_copies"`
	PricingCategoryID int64     `json:"pricing_category_id"`
	CreatedAt         time.Time `json:"created_at"`
}

func toTitleRecord(t *model.Title) *titleRecord {
	return &titleRecord{
		ID:                t.ID,
		Name:              t.Name,
		Genre:             t.Genre,
		TotalCopies:       t.TotalCopies,
		AvailableCopies:   t.AvailableCopies,
		PricingCategoryID: t.PricingCategoryID,
		CreatedAt:         t.CreatedAt,
	}
}

func (r *titleRecord) toModel() *model.Title {
	return &model.Title{
		ID:                r.ID,
		Name:              r.Name,
		Genre:             r.Genre,
		TotalCopies:       r.TotalCopies,
		AvailableCopies:   r.AvailableCopies,
		PricingCategoryID: r.PricingCategoryID,
		CreatedAt:         r.CreatedAt,
	}
}

type categoryRecord struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	BasePrice money.Money `json:"base_price"`
	CreatedAt time.Time   `json:"created_at"`
}

func (r *categoryRecord) toModel() *model.PricingCategory {
	return &model.PricingCategory{ID: r.ID, Name: r.Name, BasePrice: r.BasePrice, CreatedAt: r.CreatedAt}
}

type rentalRecord struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"user_id"`
	TitleID    int64       `json:"title_id"`
	RentalDate time.Time   `json:"rental_date"`
	DueDate    time.Time   `json:"due_date"`
	ReturnDate *time.Time  `json:"return_date,omitempty"`
	BasePrice  money.Money `json:"base_price"`
	LateFee    money.Money `json:"late_fee"`
	TotalPrice money.Money `json:"total_price"`
	CreatedAt  time.Time   `json:"created_at"`
}

func toRentalRecord(r *model.Rental) *rentalRecord {
	return &rentalRecord{
		ID:         r.ID,
		UserID:     r.UserID,
		TitleID:    r.TitleID,
		RentalDate: r.RentalDate,
		DueDate:    r.DueDate,
		ReturnDate: r.ReturnDate,
		BasePrice:  r.BasePrice,
		LateFee:    r.LateFee,
		TotalPrice: r.TotalPrice,
		CreatedAt:  r.CreatedAt,
	}
}

func (r *rentalRecord) toModel() *model.Rental {
	out := &model.Rental{
		ID:         r.ID,
		UserID:     r.UserID,
		TitleID:    r.TitleID,
		RentalDate: model.Day(r.RentalDate),
		DueDate:    model.Day(r.DueDate),
		BasePrice:  r.BasePrice,
		LateFee:    r.LateFee,
		TotalPrice: r.TotalPrice,
		CreatedAt:  r.CreatedAt,
	}
	if r.ReturnDate != nil {
		returned := model.Day(*r.ReturnDate)
		out.ReturnDate = &returned
	}
	return out
}

type feeTierRecord struct {
	ID            int64       `json:"id"`
	DaysLateStart int         `json:"days_late_start"`
	DaysLateEnd   int         `json:"days_late_end"`
	FeePerDay     money.Money `json:"fee_per_day"`
	CreatedAt     time.Time   `json:"created_at"`
}

func toFeeTierRecord(t *model.FeeTier) *feeTierRecord {
	return &feeTierRecord{
		ID:            t.ID,
		DaysLateStart: t.DaysLateStart,
		DaysLateEnd:   t.DaysLateEnd,
		FeePerDay:     t.FeePerDay,
		CreatedAt:     t.CreatedAt,
	}
}

func (r *feeTierRecord) toModel() model.FeeTier {
	return model.FeeTier{
		ID:            r.ID,
		DaysLateStart: r.DaysLateStart,
		DaysLateEnd:   r.DaysLateEnd,
		FeePerDay:     r.FeePerDay,
		CreatedAt:     r.CreatedAt,
	}
}
