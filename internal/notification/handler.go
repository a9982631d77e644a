package notification

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/events"
	"github.com/example/pickup-orders/internal/order"
)

// Sender is the email surface the worker needs.
type Sender interface {
	SendOrderConfirmation(to string, o *order.Order) error
	SendOrderRejection(to string, o *order.Order, reason string) error
}

// Handler turns consumed order events into customer emails. Every
// failure is logged and swallowed: notification is not essential to
// order correctness and is never retried from here.
type Handler struct {
	email Sender
	log   *logrus.Entry
}

func NewHandler(email Sender) *Handler {
	return &Handler{
		email: email,
		log:   logrus.WithField("component", "notifier"),
	}
}

// HandleEvent processes one event from the queue.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var ev events.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		h.log.WithError(err).Warn("unmarshal event")
		return nil
	}

	switch ev.Type {
	case events.TypeOrderCreated:
		h.handleCreated(ev)
	case events.TypeOrderRejected:
		h.handleRejected(ev)
	}
	return nil
}

func (h *Handler) handleCreated(ev events.Event) {
	var o order.Order
	if err := json.Unmarshal(ev.Data, &o); err != nil {
		h.log.WithError(err).Warn("unmarshal order.created payload")
		return
	}
	if o.CustomerEmail == "" {
		h.log.WithField("order_id", o.ID).Debug("no customer email, skipping confirmation")
		return
	}

	if err := h.email.SendOrderConfirmation(o.CustomerEmail, &o); err != nil {
		h.log.WithError(err).WithField("order_id", o.ID).Warn("send confirmation")
		return
	}
	h.log.WithField("order_id", o.ID).Info("confirmation sent")
}

func (h *Handler) handleRejected(ev events.Event) {
	var payload events.RejectedPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		h.log.WithError(err).Warn("unmarshal order.rejected payload")
		return
	}
	o := payload.Order
	if o == nil || o.CustomerEmail == "" {
		return
	}

	if err := h.email.SendOrderRejection(o.CustomerEmail, o, payload.Reason); err != nil {
		h.log.WithError(err).WithField("order_id", o.ID).Warn("send rejection notice")
		return
	}
	h.log.WithField("order_id", o.ID).Info("rejection notice sent")
}
