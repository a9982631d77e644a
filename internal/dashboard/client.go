package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/events"
	"github.com/example/pickup-orders/internal/order"
)

// State is the push-channel connection state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// Dialer opens the push stream and returns a channel of events. The
// channel closing signals a lost connection.
type Dialer func(ctx context.Context) (<-chan events.Event, error)

// Lister fetches the authoritative pending-order list for the fallback
// reconciliation poll.
type Lister func(ctx context.Context) ([]*order.Order, error)

type Config struct {
	Dial Dialer
	List Lister

	// OnNewOrder fires exactly once per order id, whichever channel
	// delivered it first.
	OnNewOrder func(o *order.Order)

	PollInterval  time.Duration // default 3s
	MaxReconnects int           // attempts before GivenUp, default 5
	BaseBackoff   time.Duration // doubled per attempt, default 500ms
}

// Client is the staff-dashboard reconciliation layer: a push stream
// with bounded reconnects plus an unconditional fallback poll, deduped
// through a locally-seen ID set so duplicate arrivals from the two
// channels produce a single alert.
type Client struct {
	cfg   Config
	state atomic.Int32
	log   *logrus.Entry

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	return &Client{
		cfg:  cfg,
		seen: make(map[string]struct{}),
		log:  logrus.WithField("component", "dashboard"),
	}
}

// State reports the push-channel state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Run drives both channels until ctx is cancelled. When it returns, no
// background work continues on behalf of the view.
func (c *Client) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.pollLoop(ctx)
	}()
	wg.Wait()
}

// pushLoop runs the Connecting → Open → Reconnecting state machine with
// bounded attempts and increasing backoff. After GivenUp only the poll
// keeps the dashboard current.
func (c *Client) pushLoop(ctx context.Context) {
	attempts := 0
	c.state.Store(int32(StateConnecting))

	for {
		if ctx.Err() != nil {
			return
		}

		ch, err := c.cfg.Dial(ctx)
		if err != nil {
			attempts++
			if attempts > c.cfg.MaxReconnects {
				c.state.Store(int32(StateGivenUp))
				c.log.Warn("push channel given up, relying on fallback poll")
				return
			}
			c.state.Store(int32(StateReconnecting))
			delay := c.backoff(attempts)
			c.log.WithFields(logrus.Fields{
				"attempt": attempts,
				"delay":   delay,
			}).Info("push connect failed, backing off")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		c.state.Store(int32(StateOpen))
		attempts = 0
		c.consume(ctx, ch)

		if ctx.Err() != nil {
			return
		}
		c.state.Store(int32(StateReconnecting))
	}
}

func (c *Client) consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Type != events.TypeNewOrder {
				continue
			}
			var o order.Order
			if err := json.Unmarshal(ev.Data, &o); err != nil {
				c.log.WithError(err).Warn("bad new_order payload")
				continue
			}
			c.handle(&o)
		}
	}
}

// pollLoop is the fallback reconciliation: re-fetch the authoritative
// pending list and diff against the seen set. It runs unconditionally,
// whatever the push channel's health, bounding staleness to one
// interval.
func (c *Client) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orders, err := c.cfg.List(ctx)
			if err != nil {
				c.log.WithError(err).Warn("fallback poll failed")
				continue
			}
			for _, o := range orders {
				c.handle(o)
			}
		}
	}
}

// handle inserts into the seen set; insertion is idempotent, so racing
// arrivals from push and poll alert at most once.
func (c *Client) handle(o *order.Order) {
	c.mu.Lock()
	if _, dup := c.seen[o.ID]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[o.ID] = struct{}{}
	c.mu.Unlock()

	if c.cfg.OnNewOrder != nil {
		c.cfg.OnNewOrder(o)
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BaseBackoff << (attempt - 1)
	if max := 30 * time.Second; d > max {
		d = max
	}
	return d
}
