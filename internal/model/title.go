// Package model holds the records shared by the stores and services.
package model

import (
	"time"

	"movierental/internal/money"
)

// Title is a rentable movie. AvailableCopies is owned by the inventory
// ledger; TotalCopies counts every copy ever stocked.
type Title struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Genre             string    `json:"genre"`
	TotalCopies       int       `json:"totalCopies"`
	AvailableCopies   int       `json:"availableCopies"`
	PricingCategoryID int64     `json:"pricingCategoryId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// PricingCategory sets the base price charged at checkout.
type PricingCategory struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	BasePrice money.Money `json:"basePrice"`
	CreatedAt time.Time   `json:"createdAt"`
}
