package intake

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/events"
	"github.com/example/pickup-orders/internal/menu"
	"github.com/example/pickup-orders/internal/order"
	"github.com/example/pickup-orders/internal/schedule"
	"github.com/example/pickup-orders/internal/store"
)

// announceTimeout bounds the post-commit notification side effects.
const announceTimeout = 5 * time.Second

// Broadcaster delivers an event to the connected dashboards.
type Broadcaster interface {
	Broadcast(ev events.Event)
}

// Publisher hands an event to the email notification pipeline.
type Publisher interface {
	Publish(ctx context.Context, key string, ev events.Event) error
}

type ItemRequest struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

type Request struct {
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	CustomerEmail string        `json:"customer_email"`
	LocationID    string        `json:"location_id"`
	PickupAt      time.Time     `json:"pickup_at"`
	Items         []ItemRequest `json:"items"`
}

// Receipt is the definitive outcome of a whole submission: the order
// either fully reserved every line or nothing happened.
type Receipt struct {
	OrderID string `json:"order_id"`
	Total   int    `json:"total"`
}

// Service coordinates order intake and the reservation-reversal path.
// The hub and publisher are best-effort collaborators invoked only
// after commit; their failures never reach a caller.
type Service struct {
	store     store.Store
	sched     *schedule.Validator
	hub       Broadcaster
	publisher Publisher
	log       *logrus.Entry
}

func NewService(st store.Store, sched *schedule.Validator, hub Broadcaster, publisher Publisher) *Service {
	return &Service{
		store:     st,
		sched:     sched,
		hub:       hub,
		publisher: publisher,
		log:       logrus.WithField("component", "intake"),
	}
}

// Submit validates a submission, then atomically reserves stock for
// every line and persists the order with its frozen snapshot. Either
// all lines reserve or none do.
func (s *Service) Submit(ctx context.Context, req *Request) (*Receipt, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	lines := canonicalItems(req.Items)

	o := &order.Order{
		ID:            uuid.New().String(),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		LocationID:    req.LocationID,
		PickupAt:      req.PickupAt,
		Status:        order.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	o.UpdatedAt = o.CreatedAt

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		for _, item := range lines {
			price, err := tx.ReserveStock(ctx, item.ItemID, item.Qty)
			if err != nil {
				return err
			}
			o.Lines = append(o.Lines, order.Line{
				ItemID:    item.ItemID,
				Qty:       item.Qty,
				UnitPrice: price,
			})
			o.Total += item.Qty * price
		}
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		if errors.Is(err, menu.ErrItemUnavailable) {
			return nil, invalidf("items", "item is not currently available")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"total":    o.Total,
		"lines":    len(o.Lines),
	}).Info("order reserved")

	go s.announceCreated(o)

	return &Receipt{OrderID: o.ID, Total: o.Total}, nil
}

// Reject restores every reserved unit of a pending order and marks it
// rejected, in one unit of work. A second rejection finds the order
// terminal and credits nothing.
func (s *Service) Reject(ctx context.Context, orderID, reason string) error {
	var rejected *order.Order

	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return order.ErrAlreadyTerminal
		}

		// Legacy free-text orders have no structured snapshot; skip
		// restoration and only flip the status. Intentional, not an error.
		if lines, ok := o.Snapshot(); ok {
			for _, l := range canonicalLines(lines) {
				if err := tx.RestoreStock(ctx, l.ItemID, l.Qty); err != nil {
					return err
				}
			}
		}

		if err := tx.SetOrderStatus(ctx, orderID, order.StatusRejected, reason); err != nil {
			return err
		}

		o.Status = order.StatusRejected
		o.RejectionReason = reason
		rejected = o
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"reason":   reason,
	}).Info("order rejected, reservation reversed")

	go s.announceRejected(rejected, reason)

	return nil
}

// Accept moves a pending order forward. No stock is touched.
func (s *Service) Accept(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, order.StatusAccepted)
}

// Complete finishes an accepted order. Stock is never mutated by
// completion.
func (s *Service) Complete(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, order.StatusCompleted)
}

func (s *Service) transition(ctx context.Context, orderID string, target order.Status) error {
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.CanTransitionTo(target) {
			return o.TransitionError(target)
		}
		return tx.SetOrderStatus(ctx, orderID, target, "")
	})
}

// announceCreated runs outside the transaction and never blocks the
// caller's response. Failures are logged only.
func (s *Service) announceCreated(o *order.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	ev, err := events.NewOrder(o)
	if err != nil {
		s.log.WithError(err).Error("build new_order event")
		return
	}
	s.hub.Broadcast(ev)

	if s.publisher == nil {
		return
	}
	confirmEv, err := events.New(events.TypeOrderCreated, o)
	if err != nil {
		s.log.WithError(err).Error("build order.created event")
		return
	}
	if err := s.publisher.Publish(ctx, o.ID, confirmEv); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("confirmation hand-off failed")
	}
}

func (s *Service) announceRejected(o *order.Order, reason string) {
	if o == nil || s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	ev, err := events.New(events.TypeOrderRejected, events.RejectedPayload{Order: o, Reason: reason})
	if err != nil {
		s.log.WithError(err).Error("build order.rejected event")
		return
	}
	if err := s.publisher.Publish(ctx, o.ID, ev); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("rejection hand-off failed")
	}
}

func (s *Service) validate(req *Request) error {
	if req.CustomerName == "" {
		return invalidf("customer_name", "required")
	}
	if len(req.Items) == 0 {
		return invalidf("items", "order must have at least one line")
	}
	for _, item := range req.Items {
		if item.ItemID == "" {
			return invalidf("items", "item_id is required")
		}
		if item.Qty <= 0 {
			return invalidf("items", "qty must be positive for item %s", item.ItemID)
		}
	}
	if err := s.sched.Validate(req.LocationID, req.PickupAt); err != nil {
		return &ValidationError{Field: "pickup_at", Reason: err.Error()}
	}
	return nil
}

// canonicalItems merges duplicate ids and sorts by item id so every
// submission acquires its row locks in the same order. Two orders
// touching the same two items can no longer deadlock each other.
func canonicalItems(items []ItemRequest) []ItemRequest {
	merged := make(map[string]int, len(items))
	for _, item := range items {
		merged[item.ItemID] += item.Qty
	}
	out := make([]ItemRequest, 0, len(merged))
	for id, qty := range merged {
		out = append(out, ItemRequest{ItemID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func canonicalLines(lines []order.Line) []order.Line {
	out := append([]order.Line(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}
