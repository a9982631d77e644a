package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pickup-orders/internal/events"
	"github.com/example/pickup-orders/internal/order"
)

type alertRecorder struct {
	mu     sync.Mutex
	orders []string
}

func (a *alertRecorder) record(o *order.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, o.ID)
}

func (a *alertRecorder) ids() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.orders...)
}

func neverDial(ctx context.Context) (<-chan events.Event, error) {
	return nil, errors.New("push channel down")
}

func staticList(orders ...*order.Order) Lister {
	return func(ctx context.Context) ([]*order.Order, error) {
		return orders, nil
	}
}

// ============================================
// Fallback Poll Tests
// ============================================

func TestClient_PollDeliversWithPushPermanentlyDown(t *testing.T) {
	alerts := &alertRecorder{}
	c := New(Config{
		Dial:          neverDial,
		List:          staticList(&order.Order{ID: "o-1"}, &order.Order{ID: "o-2"}),
		OnNewOrder:    alerts.record,
		PollInterval:  10 * time.Millisecond,
		MaxReconnects: 1,
		BaseBackoff:   time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// Orders become visible within one poll interval, exactly once,
	// despite total push failure.
	require.Eventually(t, func() bool {
		return len(alerts.ids()) == 2
	}, time.Second, 5*time.Millisecond)

	// Further polls do not re-alert.
	time.Sleep(50 * time.Millisecond)
	assert.ElementsMatch(t, []string{"o-1", "o-2"}, alerts.ids())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not stop with its view")
	}
}

func TestClient_PollIsIdempotentAcrossTicks(t *testing.T) {
	alerts := &alertRecorder{}
	c := New(Config{
		Dial:         neverDial,
		List:         staticList(&order.Order{ID: "same"}),
		OnNewOrder:   alerts.record,
		PollInterval: 5 * time.Millisecond,
		BaseBackoff:  time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.Equal(t, []string{"same"}, alerts.ids())
}

// ============================================
// Push / Poll Dedupe Tests
// ============================================

func TestClient_DuplicateFromBothChannelsAlertsOnce(t *testing.T) {
	pushCh := make(chan events.Event, 1)
	ev, err := events.NewOrder(&order.Order{ID: "dup"})
	require.NoError(t, err)
	pushCh <- ev

	alerts := &alertRecorder{}
	c := New(Config{
		Dial: func(ctx context.Context) (<-chan events.Event, error) {
			return pushCh, nil
		},
		List:         staticList(&order.Order{ID: "dup"}),
		OnNewOrder:   alerts.record,
		PollInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.Equal(t, []string{"dup"}, alerts.ids(), "racing arrivals dedupe by id")
}

func TestClient_IgnoresHeartbeats(t *testing.T) {
	pushCh := make(chan events.Event, 2)
	pushCh <- events.Ping()
	ev, err := events.NewOrder(&order.Order{ID: "o-9"})
	require.NoError(t, err)
	pushCh <- ev

	alerts := &alertRecorder{}
	c := New(Config{
		Dial: func(ctx context.Context) (<-chan events.Event, error) {
			return pushCh, nil
		},
		List:         staticList(),
		OnNewOrder:   alerts.record,
		PollInterval: time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.Equal(t, []string{"o-9"}, alerts.ids())
}

// ============================================
// Reconnect State Machine Tests
// ============================================

func TestClient_GivesUpAfterBoundedAttempts(t *testing.T) {
	var dials int32
	c := New(Config{
		Dial: func(ctx context.Context) (<-chan events.Event, error) {
			atomic.AddInt32(&dials, 1)
			return nil, errors.New("refused")
		},
		List:          staticList(),
		PollInterval:  time.Hour,
		MaxReconnects: 3,
		BaseBackoff:   time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go c.pushLoop(ctx)

	require.Eventually(t, func() bool {
		return c.State() == StateGivenUp
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(4), atomic.LoadInt32(&dials), "initial attempt plus three reconnects")
	cancel()
}

func TestClient_ReopensAfterDrop(t *testing.T) {
	var dials int32
	c := New(Config{
		Dial: func(ctx context.Context) (<-chan events.Event, error) {
			n := atomic.AddInt32(&dials, 1)
			if n == 2 {
				// Second connection stays open.
				return make(chan events.Event), nil
			}
			// First connection drops immediately.
			ch := make(chan events.Event)
			close(ch)
			return ch, nil
		},
		List:          staticList(),
		PollInterval:  time.Hour,
		MaxReconnects: 5,
		BaseBackoff:   time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.pushLoop(ctx)

	require.Eventually(t, func() bool {
		return c.State() == StateOpen && atomic.LoadInt32(&dials) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "given_up", StateGivenUp.String())
}
