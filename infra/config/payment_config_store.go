package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/mstgnz/storepay/infra/conn"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/provider"
)

var (
	ErrAlreadyExists = errors.New("payment config already exists for this provider")
	ErrNotFound      = errors.New("payment config not found")
)

// PaymentConfig is one tenant's credentials for one provider
type PaymentConfig struct {
	ID          int64         `json:"id"`
	TenantID    int64         `json:"tenant_id"`
	Provider    provider.Name `json:"provider_name"`
	APIKey      string        `json:"api_key"`
	ExtraConfig string        `json:"extra_config,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProviderConfig parses the stored extra_config JSON
func (c *PaymentConfig) ProviderConfig() (provider.Config, error) {
	return provider.ParseConfig(c.APIKey, c.ExtraConfig)
}

// PaymentConfigInput is the payload of a create
type PaymentConfigInput struct {
	Provider    string
	APIKey      string
	ExtraConfig string
}

// PaymentConfigPatch changes only the fields that are set
type PaymentConfigPatch struct {
	APIKey      *string
	ExtraConfig *string
}

// PaymentConfigStore keeps provider credentials per tenant, at most one per provider
type PaymentConfigStore struct {
	db       *conn.DB
	registry *provider.Registry
	cache    *expirable.LRU[string, PaymentConfig]
}

// NewPaymentConfigStore creates a store with a read-through LRU cache
func NewPaymentConfigStore(db *conn.DB, registry *provider.Registry, cacheSize int, ttl time.Duration) *PaymentConfigStore {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &PaymentConfigStore{
		db:       db,
		registry: registry,
		cache:    expirable.NewLRU[string, PaymentConfig](cacheSize, nil, ttl),
	}
}

func cacheKey(tenantID int64, name provider.Name) string {
	return strconv.FormatInt(tenantID, 10) + ":" + string(name)
}

func defaultKey(tenantID int64) string {
	return strconv.FormatInt(tenantID, 10) + ":*"
}

func (s *PaymentConfigStore) invalidate(tenantID int64, name provider.Name) {
	s.cache.Remove(cacheKey(tenantID, name))
	s.cache.Remove(defaultKey(tenantID))
}

// validate checks the provider name and that the adapter accepts the credentials
func (s *PaymentConfigStore) validate(name provider.Name, apiKey, extra string) error {
	adapter, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	cfg, err := provider.ParseConfig(apiKey, extra)
	if err != nil {
		return err
	}
	_, err = adapter.ParseCredentials(cfg)
	return err
}

const configColumns = `id, tenant_id, provider_name, api_key, COALESCE(extra_config, ''), created_at, updated_at`

func scanConfig(row interface{ Scan(...any) error }) (*PaymentConfig, error) {
	var c PaymentConfig
	if err := row.Scan(&c.ID, &c.TenantID, &c.Provider, &c.APIKey, &c.ExtraConfig, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Create stores a new config; a second config for the same (tenant, provider) fails with ErrAlreadyExists
func (s *PaymentConfigStore) Create(ctx context.Context, tenantID int64, in PaymentConfigInput) (*PaymentConfig, error) {
	name, err := provider.ParseName(in.Provider)
	if err != nil {
		return nil, err
	}
	if err := s.validate(name, in.APIKey, in.ExtraConfig); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, tenantID, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	var id int64
	err = conn.Retry(ctx, 5, func() error {
		return s.db.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO payment_configs (tenant_id, provider_name, api_key, extra_config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
			tenantID, string(name), in.APIKey, in.ExtraConfig, now, now).Scan(&id)
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save payment config: %w", err)
	}

	s.invalidate(tenantID, name)
	logger.Info("Payment config created", logger.LogContext{
		TenantID: strconv.FormatInt(tenantID, 10),
		Provider: string(name),
		Fields:   map[string]any{"config_id": id},
	})
	return s.GetByID(ctx, tenantID, id)
}

// Get returns the tenant's config for a provider
func (s *PaymentConfigStore) Get(ctx context.Context, tenantID int64, name provider.Name) (*PaymentConfig, error) {
	key := cacheKey(tenantID, name)
	if c, ok := s.cache.Get(key); ok {
		return &c, nil
	}

	c, err := s.queryOne(ctx, `SELECT `+configColumns+` FROM payment_configs WHERE tenant_id = ? AND provider_name = ?`,
		tenantID, string(name))
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, *c)
	return c, nil
}

// GetDefault returns the tenant's oldest config, used when no provider is requested
func (s *PaymentConfigStore) GetDefault(ctx context.Context, tenantID int64) (*PaymentConfig, error) {
	key := defaultKey(tenantID)
	if c, ok := s.cache.Get(key); ok {
		return &c, nil
	}

	c, err := s.queryOne(ctx, `SELECT `+configColumns+` FROM payment_configs WHERE tenant_id = ? ORDER BY id LIMIT 1`, tenantID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, *c)
	return c, nil
}

// GetByID returns a config owned by tenantID
func (s *PaymentConfigStore) GetByID(ctx context.Context, tenantID, id int64) (*PaymentConfig, error) {
	return s.queryOne(ctx, `SELECT `+configColumns+` FROM payment_configs WHERE tenant_id = ? AND id = ?`, tenantID, id)
}

func (s *PaymentConfigStore) queryOne(ctx context.Context, query string, args ...any) (*PaymentConfig, error) {
	var c *PaymentConfig
	err := conn.Retry(ctx, 5, func() error {
		var err error
		c, err = scanConfig(s.db.QueryRowContext(ctx, s.db.Rebind(query), args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment config: %w", err)
	}
	return c, nil
}

// List returns all configs of a tenant in creation order
func (s *PaymentConfigStore) List(ctx context.Context, tenantID int64) ([]PaymentConfig, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT `+configColumns+` FROM payment_configs WHERE tenant_id = ? ORDER BY id`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment configs: %w", err)
	}
	defer rows.Close()

	configs := make([]PaymentConfig, 0)
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment config: %w", err)
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

// Update applies a patch to a tenant's config and revalidates it
func (s *PaymentConfigStore) Update(ctx context.Context, tenantID, id int64, patch PaymentConfigPatch) (*PaymentConfig, error) {
	current, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	apiKey, extra := current.APIKey, current.ExtraConfig
	if patch.APIKey != nil {
		apiKey = strings.TrimSpace(*patch.APIKey)
	}
	if patch.ExtraConfig != nil {
		extra = *patch.ExtraConfig
	}
	if err := s.validate(current.Provider, apiKey, extra); err != nil {
		return nil, err
	}

	err = conn.Retry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(`
			UPDATE payment_configs SET api_key = ?, extra_config = ?, updated_at = ?
			WHERE tenant_id = ? AND id = ?`),
			apiKey, extra, time.Now().UTC(), tenantID, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update payment config: %w", err)
	}

	s.invalidate(tenantID, current.Provider)
	return s.GetByID(ctx, tenantID, id)
}

// Delete removes a tenant's config
func (s *PaymentConfigStore) Delete(ctx context.Context, tenantID, id int64) error {
	current, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	err = conn.Retry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM payment_configs WHERE tenant_id = ? AND id = ?`), tenantID, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete payment config: %w", err)
	}

	s.invalidate(tenantID, current.Provider)
	logger.Info("Payment config deleted", logger.LogContext{
		TenantID: strconv.FormatInt(tenantID, 10),
		Provider: string(current.Provider),
		Fields:   map[string]any{"config_id": id},
	})
	return nil
}
