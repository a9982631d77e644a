package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/pickup-orders/internal/events"
	"github.com/example/pickup-orders/internal/order"
)

// NewSSEDialer returns a Dialer that opens the server's event stream
// and decodes its data frames. The returned channel closes when the
// connection drops, which sends the client back through its reconnect
// state machine.
func NewSSEDialer(client *http.Client, streamURL, token string) Dialer {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (<-chan events.Event, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/event-stream")
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
		}

		ch := make(chan events.Event)
		go func() {
			defer close(ch)
			defer resp.Body.Close()

			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var ev events.Event
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

// NewHTTPLister returns a Lister backed by the pending-orders endpoint.
func NewHTTPLister(client *http.Client, listURL, token string) Lister {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) ([]*order.Order, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
		if err != nil {
			return nil, err
		}
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("pending list returned status %d", resp.StatusCode)
		}

		var orders []*order.Order
		if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
			return nil, err
		}
		return orders, nil
	}
}
