package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/intake"
	"github.com/example/pickup-orders/internal/menu"
	"github.com/example/pickup-orders/internal/order"
	"github.com/example/pickup-orders/internal/schedule"
	"github.com/example/pickup-orders/internal/store"
)

type Handlers struct {
	intake *intake.Service
	store  store.Store
	sched  *schedule.Validator
	log    *logrus.Entry
}

func NewHandlers(svc *intake.Service, st store.Store, sched *schedule.Validator) *Handlers {
	return &Handlers{
		intake: svc,
		store:  st,
		sched:  sched,
		log:    logrus.WithField("component", "api"),
	}
}

// Order Handlers

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req intake.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	receipt, err := h.intake.Submit(r.Context(), &req)
	if err != nil {
		h.respondIntakeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	o, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		h.respondIntakeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// PendingOrders serves both the initial dashboard render and the
// fallback reconciliation poll, newest first.
func (h *Handlers) PendingOrders(w http.ResponseWriter, r *http.Request) {
	status := order.StatusPending
	if q := r.URL.Query().Get("status"); q != "" {
		switch order.Status(q) {
		case order.StatusPending, order.StatusAccepted, order.StatusCompleted, order.StatusRejected:
			status = order.Status(q)
		default:
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
			return
		}
	}

	orders, err := h.store.ListOrdersByStatus(r.Context(), status)
	if err != nil {
		h.respondIntakeError(w, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) RejectOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/reject")

	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if err := h.intake.Reject(r.Context(), id, req.Reason); err != nil {
		h.respondIntakeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(order.StatusRejected)})
}

func (h *Handlers) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/accept")
	if err := h.intake.Accept(r.Context(), id); err != nil {
		h.respondIntakeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(order.StatusAccepted)})
}

func (h *Handlers) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/complete")
	if err := h.intake.Complete(r.Context(), id); err != nil {
		h.respondIntakeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(order.StatusCompleted)})
}

// Menu Handlers

func (h *Handlers) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenu(r.Context(), true)
	if err != nil {
		h.respondIntakeError(w, err)
		return
	}
	if items == nil {
		items = []*menu.Item{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) RestockItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/menu/"), "/restock")

	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.store.RestockItem(r.Context(), id, req.Qty)
	if err != nil {
		h.respondIntakeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// Locations

func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.Locations())
}

// respondIntakeError maps the intake/store error taxonomy onto HTTP.
func (h *Handlers) respondIntakeError(w http.ResponseWriter, err error) {
	var vErr *intake.ValidationError
	var stockErr *store.InsufficientStockError

	switch {
	case errors.As(err, &vErr):
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "validation failed",
			"field":  vErr.Field,
			"detail": vErr.Reason,
		})
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"item_id":   stockErr.ItemID,
			"available": stockErr.Available,
		})
	case errors.Is(err, order.ErrAlreadyTerminal), errors.Is(err, order.ErrInvalidStatus):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, menu.ErrItemNotFound), errors.Is(err, order.ErrOrderNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, menu.ErrInvalidQuantity):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrTransientStore):
		w.Header().Set("Retry-After", "1")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "temporarily unavailable, retry the whole submission",
		})
	default:
		h.log.WithError(err).Error("request failed")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
