package mocks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/example/pickup-orders/internal/menu"
	"github.com/example/pickup-orders/internal/order"
	"github.com/example/pickup-orders/internal/store"
)

// MemStore is an in-memory Store for tests. WithinTx snapshots all state
// up front and restores it when fn fails, so abort really means no
// partial effects, same as the SQL implementation.
type MemStore struct {
	mu     sync.Mutex
	items  map[string]menu.Item
	orders map[string]order.Order
	staff  map[string]store.StaffAccount

	// Failure injection
	TxErr error // returned by WithinTx before fn runs

	// Call tracking
	TxCalls int
}

var _ store.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		items:  make(map[string]menu.Item),
		orders: make(map[string]order.Order),
		staff:  make(map[string]store.StaffAccount),
	}
}

func (m *MemStore) SeedItem(it menu.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
}

func (m *MemStore) SeedOrder(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.RawLines == nil && o.Lines != nil {
		o.RawLines, _ = json.Marshal(o.Lines)
	}
	m.orders[o.ID] = o
}

func (m *MemStore) SeedStaff(acc store.StaffAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[acc.Email] = acc
}

// StockOf reads the current counter for assertions.
func (m *MemStore) StockOf(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Stock
}

// SetPrice mutates the catalog after order creation, for frozen-total
// assertions.
func (m *MemStore) SetPrice(itemID string, price int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.items[itemID]
	it.Price = price
	m.items[itemID] = it
}

func (m *MemStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TxCalls++
	if m.TxErr != nil {
		return m.TxErr
	}

	itemsBefore := make(map[string]menu.Item, len(m.items))
	for k, v := range m.items {
		itemsBefore[k] = v
	}
	ordersBefore := make(map[string]order.Order, len(m.orders))
	for k, v := range m.orders {
		ordersBefore[k] = v
	}

	if err := fn(&memTx{m: m}); err != nil {
		m.items = itemsBefore
		m.orders = ordersBefore
		return err
	}
	return nil
}

type memTx struct {
	m *MemStore
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) ReserveStock(ctx context.Context, itemID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, menu.ErrInvalidQuantity
	}
	it, ok := t.m.items[itemID]
	if !ok {
		return 0, menu.ErrItemNotFound
	}
	if !it.Available {
		return 0, menu.ErrItemUnavailable
	}
	if it.Stock < qty {
		return 0, &store.InsufficientStockError{ItemID: itemID, Requested: qty, Available: it.Stock}
	}
	it.Stock -= qty
	t.m.items[itemID] = it
	return it.Price, nil
}

func (t *memTx) RestoreStock(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return menu.ErrInvalidQuantity
	}
	it, ok := t.m.items[itemID]
	if !ok {
		return nil
	}
	it.Stock += qty
	t.m.items[itemID] = it
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *order.Order) error {
	cp := *o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	cp.RawLines, _ = json.Marshal(cp.Lines)
	t.m.orders[o.ID] = cp
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	o, ok := t.m.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := o
	cp.Lines, _ = order.ParseLines(o.RawLines)
	return &cp, nil
}

func (t *memTx) SetOrderStatus(ctx context.Context, orderID string, status order.Status, reason string) error {
	o, ok := t.m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	o.RejectionReason = reason
	t.m.orders[orderID] = o
	return nil
}

func (m *MemStore) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := o
	cp.Lines, _ = order.ParseLines(o.RawLines)
	return &cp, nil
}

func (m *MemStore) ListOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*order.Order
	for _, o := range m.orders {
		if o.Status != status {
			continue
		}
		cp := o
		cp.Lines, _ = order.ParseLines(o.RawLines)
		out = append(out, &cp)
	}
	// Newest first, ties broken by id for deterministic tests.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemStore) ListMenu(ctx context.Context, onlyAvailable bool) ([]*menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*menu.Item
	for _, it := range m.items {
		if onlyAvailable && !it.Available {
			continue
		}
		cp := it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) GetItem(ctx context.Context, itemID string) (*menu.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return nil, menu.ErrItemNotFound
	}
	cp := it
	return &cp, nil
}

func (m *MemStore) RestockItem(ctx context.Context, itemID string, qty int) (*menu.Item, error) {
	if qty <= 0 {
		return nil, menu.ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return nil, menu.ErrItemNotFound
	}
	it.Stock += qty
	m.items[itemID] = it
	cp := it
	return &cp, nil
}

func (m *MemStore) GetStaffByEmail(ctx context.Context, email string) (*store.StaffAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.staff[email]
	if !ok {
		return nil, store.ErrStaffNotFound
	}
	cp := acc
	return &cp, nil
}
