package menu

import (
	"errors"
	"time"
)

var (
	ErrItemNotFound    = errors.New("menu item not found")
	ErrItemUnavailable = errors.New("menu item is not available")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Item is a menu entry backed by a shared stock counter. Stock moves by
// admin restock, order reservation (decrement) and rejection restore
// (increment); completing an order never touches it.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int       `json:"price"` // minor currency units
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
