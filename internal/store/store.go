package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/pickup-orders/internal/menu"
	"github.com/example/pickup-orders/internal/order"
)

var (
	// ErrTransientStore covers bounded lock waits and connection
	// failures. Nothing committed; the whole submission may be retried.
	ErrTransientStore = errors.New("storage temporarily unavailable")

	ErrStaffNotFound = errors.New("staff account not found")
)

// InsufficientStockError identifies the first line whose reservation
// failed. The enclosing transaction is rolled back in full.
type InsufficientStockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

// StaffAccount is a dashboard login. Password hashes are bcrypt.
type StaffAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tx is the unit-of-work surface. Reserve and restore lock the item's
// stock row for the remainder of the transaction; callers must not hold
// a Tx across network I/O.
type Tx interface {
	// ReserveStock verifies stock >= qty under the row lock, decrements,
	// and returns the unit price observed at that moment.
	ReserveStock(ctx context.Context, itemID string, qty int) (unitPrice int, err error)

	// RestoreStock increments unconditionally. Only the rejection path
	// uses it.
	RestoreStock(ctx context.Context, itemID string, qty int) error

	InsertOrder(ctx context.Context, o *order.Order) error

	// GetOrderForUpdate locks the order row so concurrent rejections of
	// the same order serialize.
	GetOrderForUpdate(ctx context.Context, orderID string) (*order.Order, error)

	SetOrderStatus(ctx context.Context, orderID string, status order.Status, reason string) error
}

// Store is the durable storage port. WithinTx runs fn inside one atomic
// unit of work: fn's error aborts everything, otherwise the work commits.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
	ListOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error)

	ListMenu(ctx context.Context, onlyAvailable bool) ([]*menu.Item, error)
	GetItem(ctx context.Context, itemID string) (*menu.Item, error)
	RestockItem(ctx context.Context, itemID string, qty int) (*menu.Item, error)

	GetStaffByEmail(ctx context.Context, email string) (*StaffAccount, error)
}
