package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mstgnz/storepay/infra/conn"
)

const maxBusyRetries = 5

// Store persists orders and applies transitions with a single conditional update per order
type Store struct {
	db  *conn.DB
	now func() time.Time
}

// NewStore creates an order store on db
func NewStore(db *conn.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const orderColumns = `id, tenant_id, product_id, provider_name, buyer_ref, amount, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.TenantID, &o.ProductID, &o.Provider, &o.BuyerRef, &o.Amount, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts a pending order
func (s *Store) CreateOrder(ctx context.Context, in NewOrder) (*Order, error) {
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("order amount must not be negative")
	}
	now := s.now().UTC()

	var id int64
	err := conn.Retry(ctx, maxBusyRetries, func() error {
		return s.db.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO orders (tenant_id, product_id, provider_name, buyer_ref, amount, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			in.TenantID, in.ProductID, in.Provider, in.BuyerRef, in.Amount.StringFixed(2), StatusPending, now, now).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns an order by id
func (s *Store) Get(ctx context.Context, id int64) (*Order, error) {
	var order *Order
	err := conn.Retry(ctx, maxBusyRetries, func() error {
		var err error
		order, err = scanOrder(s.db.QueryRowContext(ctx,
			s.db.Rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return order, nil
}

// GetForTenant returns an order only when it belongs to tenantID
func (s *Store) GetForTenant(ctx context.Context, tenantID, id int64) (*Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	return order, nil
}

// ListByTenant returns a page of a tenant's orders, oldest first
func (s *Store) ListByTenant(ctx context.Context, tenantID int64, offset, limit int) ([]Order, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = ?
		ORDER BY id
		LIMIT ? OFFSET ?`), tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// AttachProvider records the provider chosen for a still pending order
func (s *Store) AttachProvider(ctx context.Context, id int64, providerName string) error {
	return conn.Retry(ctx, maxBusyRetries, func() error {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(`
			UPDATE orders SET provider_name = ?, updated_at = ?
			WHERE id = ? AND status = ?`),
			providerName, s.now().UTC(), id, StatusPending)
		return err
	})
}

// Settle moves an order to a terminal status. The check and the write are one
// UPDATE ... WHERE status = 'pending', so of several concurrent settlements of the
// same order exactly one is applied; the rest are classified from the stored row.
func (s *Store) Settle(ctx context.Context, id int64, target Status) (*Settlement, error) {
	if !target.Terminal() {
		return nil, fmt.Errorf("%w: target %q is not terminal", ErrInvalidTransition, target)
	}

	var affected int64
	err := conn.Retry(ctx, maxBusyRetries, func() error {
		res, err := s.db.ExecContext(ctx, s.db.Rebind(`
			UPDATE orders SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`),
			target, s.now().UTC(), id, StatusPending)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle order %d: %w", id, err)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if affected == 1 {
		return &Settlement{Order: order, Applied: true}, nil
	}

	switch Decide(order.Status, target) {
	case NoOp:
		return &Settlement{Order: order}, nil
	case Conflict:
		return &Settlement{Order: order, Conflict: true}, nil
	default:
		// still pending although the conditional update matched nothing
		return nil, fmt.Errorf("%w: order %d was not updated", ErrInvalidTransition, id)
	}
}
