package catalog

import (
	"movierental/internal/model"
	"movierental/internal/money"
)

// TitleView is a title with its current base price, when one is assigned.
type TitleView struct {
	model.Title
	CurrentPrice *money.Money `json:"currentPrice"`
}
