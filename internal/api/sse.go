package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/hub"
)

// StreamHandler serves the long-lived dashboard event stream. Events
// arrive pre-serialized from the hub; the handler only frames and
// flushes them. The subscription is deterministically unregistered when
// the request context ends; no work continues for a detached view.
type StreamHandler struct {
	hub *hub.Hub
	log *logrus.Entry
}

func NewStreamHandler(h *hub.Hub) *StreamHandler {
	return &StreamHandler{
		hub: h,
		log: logrus.WithField("component", "sse"),
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	sub := h.hub.Register()
	defer h.hub.Unregister(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("client closed connection")
			return
		case frame, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub (slow consumer or shutdown).
				return
			}
			if _, err := w.Write(append(append([]byte("data: "), frame...), '\n', '\n')); err != nil {
				h.log.WithError(err).Debug("write failed, closing stream")
				return
			}
			flusher.Flush()
		}
	}
}
