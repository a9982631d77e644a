package events

import (
	"encoding/json"
	"time"

	"github.com/example/pickup-orders/internal/order"
)

// Dashboard stream event types.
const (
	TypeNewOrder = "new_order"
	TypePing     = "ping"
)

// Notifier hand-off event types, carried over Kafka to the email worker.
const (
	TypeOrderCreated  = "order.created"
	TypeOrderRejected = "order.rejected"
)

// Event is an ephemeral notification envelope. Events are serialized
// once per broadcast, never persisted and never replayed to subscribers
// that connect after the fact.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

// New builds an event with the payload marshalled into Data.
func New(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}, nil
}

// NewOrder builds the dashboard stream event for a freshly placed order.
func NewOrder(o *order.Order) (Event, error) {
	return New(TypeNewOrder, o)
}

// Ping builds a keep-alive heartbeat.
func Ping() Event {
	return Event{Type: TypePing, Timestamp: time.Now().UTC()}
}

// RejectedPayload is the body of an order.rejected event.
type RejectedPayload struct {
	Order  *order.Order `json:"order"`
	Reason string       `json:"reason"`
}
