package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/example/pickup-orders/internal/menu"
	"github.com/example/pickup-orders/internal/order"
)

// lockWait bounds how long a transaction waits for a stock or order row
// lock before the whole submission fails as transient.
const lockWait = "3s"

// Postgres implements Store on database/sql with row-level locking.
type Postgres struct {
	db  *sql.DB
	log *logrus.Entry
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:  db,
		log: logrus.WithField("component", "store"),
	}
}

// WithinTx runs fn inside one transaction with a bounded lock wait.
// Any error from fn rolls back every effect of the unit of work.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.asStoreError(err)
	}

	if _, err := sqlTx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockWait)); err != nil {
		sqlTx.Rollback()
		return p.asStoreError(err)
	}

	if err := fn(&pgTx{tx: sqlTx, p: p}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.log.WithError(rbErr).Error("rollback failed")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return p.asStoreError(err)
	}
	return nil
}

// asStoreError maps driver-level failures onto the store taxonomy. A
// lock_timeout expiry (55P03) or a connection-class error is transient:
// nothing committed, the caller may retry the whole operation.
func (p *Postgres) asStoreError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if code == "55P03" || code == "40P01" || pqErr.Code.Class() == "08" {
			return fmt.Errorf("%w: %s", ErrTransientStore, pqErr.Message)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return err
}

type pgTx struct {
	tx *sql.Tx
	p  *Postgres
}

var _ Tx = (*pgTx)(nil)

// ReserveStock is the ledger's lock-check-mutate step: the row is locked
// for the rest of the transaction, so no concurrent reader can observe
// stock below zero or a partially reserved order.
func (t *pgTx) ReserveStock(ctx context.Context, itemID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, menu.ErrInvalidQuantity
	}

	var (
		price     int
		stock     int
		available bool
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT price, stock, available FROM menu_items WHERE id = $1 FOR UPDATE`,
		itemID,
	).Scan(&price, &stock, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, menu.ErrItemNotFound
	}
	if err != nil {
		return 0, t.p.asStoreError(err)
	}

	if !available {
		return 0, menu.ErrItemUnavailable
	}
	if stock < qty {
		return 0, &InsufficientStockError{ItemID: itemID, Requested: qty, Available: stock}
	}

	_, err = t.tx.ExecContext(ctx,
		`UPDATE menu_items SET stock = stock - $2, updated_at = now() WHERE id = $1`,
		itemID, qty,
	)
	if err != nil {
		return 0, t.p.asStoreError(err)
	}
	return price, nil
}

func (t *pgTx) RestoreStock(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return menu.ErrInvalidQuantity
	}

	res, err := t.tx.ExecContext(ctx,
		`UPDATE menu_items SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		itemID, qty,
	)
	if err != nil {
		return t.p.asStoreError(err)
	}
	// A line may reference an item deleted since the order was placed;
	// there is nothing left to credit then.
	if n, _ := res.RowsAffected(); n == 0 {
		t.p.log.WithField("item_id", itemID).Warn("restore skipped, item row missing")
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Lines)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO orders
		   (id, customer_name, customer_phone, customer_email, location_id,
		    pickup_at, items, total, status, payment_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $11)`,
		o.ID, o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.LocationID,
		o.PickupAt, items, o.Total, o.Status, o.PaymentStatus, o.CreatedAt,
	)
	if err != nil {
		return t.p.asStoreError(err)
	}
	return nil
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	row := t.tx.QueryRowContext(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, t.p.asStoreError(err)
	}
	return o, nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, status order.Status, reason string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE orders
		    SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = now()
		  WHERE id = $1`,
		orderID, status, reason,
	)
	if err != nil {
		return t.p.asStoreError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

const selectOrder = `
	SELECT id, customer_name, customer_phone, customer_email, location_id,
	       pickup_at, items, total, status,
	       COALESCE(rejection_reason, ''), COALESCE(payment_status, ''),
	       created_at, updated_at
	  FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o   order.Order
		raw []byte
	)
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.LocationID,
		&o.PickupAt, &raw, &o.Total, &o.Status,
		&o.RejectionReason, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	o.RawLines = raw
	// Legacy free-text orders read back with a nil structured snapshot.
	o.Lines, _ = order.ParseLines(raw)
	return &o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	row := p.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return nil, p.asStoreError(err)
	}
	return o, nil
}

// ListOrdersByStatus returns orders newest first. The dashboard uses it
// for the initial render and for every fallback reconciliation poll.
func (p *Postgres) ListOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	rows, err := p.db.QueryContext(ctx,
		selectOrder+` WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, p.asStoreError(err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (p *Postgres) ListMenu(ctx context.Context, onlyAvailable bool) ([]*menu.Item, error) {
	q := `SELECT id, name, description, price, stock, available, created_at, updated_at
	        FROM menu_items`
	if onlyAvailable {
		q += ` WHERE available`
	}
	q += ` ORDER BY name`

	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, p.asStoreError(err)
	}
	defer rows.Close()

	var items []*menu.Item
	for rows.Next() {
		var it menu.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price,
			&it.Stock, &it.Available, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (p *Postgres) GetItem(ctx context.Context, itemID string) (*menu.Item, error) {
	var it menu.Item
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, stock, available, created_at, updated_at
		   FROM menu_items WHERE id = $1`, itemID,
	).Scan(&it.ID, &it.Name, &it.Description, &it.Price,
		&it.Stock, &it.Available, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, menu.ErrItemNotFound
	}
	if err != nil {
		return nil, p.asStoreError(err)
	}
	return &it, nil
}

// RestockItem is the admin-side stock increment; customer flows never
// reach it.
func (p *Postgres) RestockItem(ctx context.Context, itemID string, qty int) (*menu.Item, error) {
	if qty <= 0 {
		return nil, menu.ErrInvalidQuantity
	}

	var it menu.Item
	err := p.db.QueryRowContext(ctx,
		`UPDATE menu_items SET stock = stock + $2, updated_at = now()
		  WHERE id = $1
		 RETURNING id, name, description, price, stock, available, created_at, updated_at`,
		itemID, qty,
	).Scan(&it.ID, &it.Name, &it.Description, &it.Price,
		&it.Stock, &it.Available, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, menu.ErrItemNotFound
	}
	if err != nil {
		return nil, p.asStoreError(err)
	}
	return &it, nil
}

func (p *Postgres) GetStaffByEmail(ctx context.Context, email string) (*StaffAccount, error) {
	var acc StaffAccount
	err := p.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_at
		   FROM staff_accounts WHERE email = $1`, email,
	).Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.Role, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, p.asStoreError(err)
	}
	return &acc, nil
}
