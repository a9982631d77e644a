package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/events"
)

// subscriberBuffer is how many frames a subscriber may fall behind
// before it is dropped. There is no per-subscriber backlog beyond it.
const subscriberBuffer = 16

// DefaultHeartbeat keeps idle connections alive through proxies.
const DefaultHeartbeat = 25 * time.Second

// Subscriber is one open dashboard stream. Frames arrive pre-serialized.
type Subscriber struct {
	ch chan []byte
}

// Events returns the subscriber's frame channel. It is closed when the
// subscriber is unregistered.
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

// Hub holds the currently connected dashboard subscriptions and fans
// events out to all of them with at-most-once, best-effort delivery.
// It is an injected component, not a singleton; tests substitute it
// freely.
type Hub struct {
	mu        sync.Mutex
	subs      map[*Subscriber]struct{}
	heartbeat time.Duration
	log       *logrus.Entry
}

func New(heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Hub{
		subs:      make(map[*Subscriber]struct{}),
		heartbeat: heartbeat,
		log:       logrus.WithField("component", "hub"),
	}
}

// Register adds a new subscription and returns it.
func (h *Hub) Register() *Subscriber {
	s := &Subscriber{ch: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	h.log.WithField("subscribers", n).Debug("subscriber registered")
	return s
}

// Unregister removes a subscription and closes its channel. Safe to call
// more than once.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

func (h *Hub) dropLocked(s *Subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}

// Broadcast serializes the event once and hands it to every subscriber
// with a non-blocking send. A subscriber whose buffer is full is dropped
// immediately so a slow or dead connection can never delay the others.
func (h *Hub) Broadcast(ev events.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- frame:
		default:
			h.log.Warn("subscriber too slow, dropping")
			h.dropLocked(s)
		}
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Run emits heartbeats on a fixed interval, independent of order
// traffic, until ctx is cancelled. All subscriptions are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.Broadcast(events.Ping())
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		h.dropLocked(s)
	}
}
