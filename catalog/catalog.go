package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/storepay/infra/conn"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Tenant is a merchant account owning products, configs and orders
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a sellable item with a fixed price
type Product struct {
	ID          int64           `json:"id"`
	TenantID    int64           `json:"tenant_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Store reads and writes tenants and products
type Store struct {
	db *conn.DB
}

// NewStore creates a catalog store on db
func NewStore(db *conn.DB) *Store {
	return &Store{db: db}
}

// CreateTenant inserts a tenant, returning the existing one when the name is taken
func (s *Store) CreateTenant(ctx context.Context, name string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}

	err := conn.Retry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO tenants (name, created_at) VALUES (?, ?)
			ON CONFLICT (name) DO NOTHING`), name, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	var t Tenant
	err = s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT id, name, created_at FROM tenants WHERE name = ?`), name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return &t, nil
}

// GetTenant returns a tenant by id
func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT id, name, created_at FROM tenants WHERE id = ?`), id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return &t, nil
}

// CreateProduct inserts a product for a tenant
func (s *Store) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}

	var id int64
	err := conn.Retry(ctx, 5, func() error {
		return s.db.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO products (tenant_id, title, description, price, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`),
			p.TenantID, p.Title, p.Description, p.Price.StringFixed(2), time.Now().UTC()).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return s.GetProduct(ctx, id)
}

const productColumns = `id, tenant_id, title, COALESCE(description, ''), price, created_at`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.TenantID, &p.Title, &p.Description, &p.Price, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct returns a product by id regardless of tenant; callers check ownership
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return p, nil
}

// ListProducts returns a tenant's products in id order
func (s *Store) ListProducts(ctx context.Context, tenantID int64) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE tenant_id = ? ORDER BY id`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}
