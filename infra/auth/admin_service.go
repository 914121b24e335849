package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/infra/conn"
	"github.com/mstgnz/storepay/infra/logger"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminExists        = errors.New("admin already exists")
	ErrRegistrationClosed = errors.New("registration is closed")
)

// Admin is a user managing one tenant's products and payment configs
type Admin struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	TenantID     int64      `json:"tenant_id"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	TenantID  int64     `json:"tenant_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterRequest creates a tenant together with its first admin
type RegisterRequest struct {
	TenantName string `json:"tenant_name" validate:"required,min=2,max=100"`
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Password   string `json:"password" validate:"required,min=6"`
}

// TenantCreator creates tenants for new admins
type TenantCreator interface {
	CreateTenant(ctx context.Context, name string) (*catalog.Tenant, error)
}

// AdminService handles admin accounts and login
type AdminService struct {
	db      *conn.DB
	jwt     *JWTService
	tenants TenantCreator
}

// NewAdminService creates a new admin service
func NewAdminService(db *conn.DB, jwtService *JWTService, tenants TenantCreator) *AdminService {
	return &AdminService{db: db, jwt: jwtService, tenants: tenants}
}

// Login authenticates an admin and returns a token scoped to the admin's tenant
func (s *AdminService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	admin, err := s.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.updateLastLogin(ctx, admin.ID); err != nil {
		logger.Warn("Failed to update last login: "+err.Error(), logger.LogContext{
			Fields: map[string]any{"admin_id": admin.ID},
		})
	}

	token, expiresAt, err := s.jwt.GenerateToken(admin.TenantID, admin.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:     token,
		TenantID:  admin.TenantID,
		Username:  admin.Username,
		ExpiresAt: expiresAt,
	}, nil
}

// CreateAdmin adds an admin to an existing tenant
func (s *AdminService) CreateAdmin(ctx context.Context, tenantID int64, username, password string) (*Admin, error) {
	username = strings.TrimSpace(username)
	if _, err := s.GetByUsername(ctx, username); err == nil {
		return nil, ErrAdminExists
	} else if !errors.Is(err, ErrAdminNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var id int64
	err = conn.Retry(ctx, 5, func() error {
		return s.db.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO admin_users (username, password_hash, tenant_id, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id`),
			username, string(hashed), tenantID, time.Now().UTC()).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	return s.GetByUsername(ctx, username)
}

// Register creates a tenant and its admin. It is only open while no admin exists.
func (s *AdminService) Register(ctx context.Context, req RegisterRequest) (*Admin, error) {
	count, err := s.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrRegistrationClosed
	}

	tenant, err := s.tenants.CreateTenant(ctx, req.TenantName)
	if err != nil {
		return nil, err
	}
	return s.CreateAdmin(ctx, tenant.ID, req.Username, req.Password)
}

// GetByUsername retrieves an admin by username
func (s *AdminService) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	var (
		a         Admin
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, username, password_hash, tenant_id, last_login, created_at
		FROM admin_users
		WHERE username = ?`), username).Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.TenantID, &lastLogin, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	if lastLogin.Valid {
		a.LastLogin = &lastLogin.Time
	}
	return &a, nil
}

// CountAdmins returns the number of admin accounts
func (s *AdminService) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

func (s *AdminService) updateLastLogin(ctx context.Context, id int64) error {
	return conn.Retry(ctx, 5, func() error {
		_, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE admin_users SET last_login = ? WHERE id = ?`),
			time.Now().UTC(), id)
		return err
	})
}
