package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must have at least one line")
	ErrInvalidStatus   = errors.New("invalid order status transition")
	ErrAlreadyTerminal = errors.New("order is already in a terminal status")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusCompleted},
	StatusCompleted: {}, // terminal state
	StatusRejected:  {}, // terminal state
}

// Line is one entry of an order's frozen snapshot. UnitPrice is the menu
// price captured under the reservation lock; later catalog edits never
// change it.
type Line struct {
	ItemID    string `json:"item_id"`
	Qty       int    `json:"qty"`
	UnitPrice int    `json:"unit_price"`
}

type Order struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone,omitempty"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	LocationID      string          `json:"location_id"`
	PickupAt        time.Time       `json:"pickup_at"`
	Lines           []Line          `json:"lines,omitempty"`
	RawLines        json.RawMessage `json:"-"`
	Total           int             `json:"total"`
	Status          Status          `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	PaymentStatus   string          `json:"payment_status,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (o *Order) Terminal() bool {
	return len(validTransitions[o.Status]) == 0
}

// TransitionError returns an appropriate error for an invalid transition
func (o *Order) TransitionError(target Status) error {
	if o.Terminal() {
		return ErrAlreadyTerminal
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
}

// Snapshot returns the structured line list and whether the raw column
// could be parsed. Legacy orders stored free text in the items column;
// those read back as (nil, false) and are handled without restoring stock.
func (o *Order) Snapshot() ([]Line, bool) {
	if o.Lines != nil {
		return o.Lines, true
	}
	return ParseLines(o.RawLines)
}

// ParseLines decodes a stored items column into a structured snapshot.
func ParseLines(raw json.RawMessage) ([]Line, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, false
	}
	if len(lines) == 0 {
		return nil, false
	}
	for _, l := range lines {
		if l.ItemID == "" || l.Qty <= 0 {
			return nil, false
		}
	}
	return lines, true
}

// SnapshotTotal recomputes the sum over a frozen snapshot. The stored
// total is authoritative; this exists for integrity checks and tests.
func SnapshotTotal(lines []Line) int {
	var total int
	for _, l := range lines {
		total += l.Qty * l.UnitPrice
	}
	return total
}
