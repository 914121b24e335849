package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/infra/conn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)

	token, expiresAt, err := svc.GenerateToken(7, "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.TenantID)
	assert.Equal(t, "admin", claims.Username)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	good, _, err := svc.GenerateToken(7, "admin")
	require.NoError(t, err)

	expired, _, err := NewJWTService("secret", time.Nanosecond).GenerateToken(7, "admin")
	require.NoError(t, err)
	time.Sleep(time.Second)

	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{
		Username:         "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		svc   *JWTService
		token string
		want  error
	}{
		{"garbage", svc, "not-a-token", ErrInvalidToken},
		{"other secret", NewJWTService("other", time.Hour), good, ErrInvalidToken},
		{"expired", svc, expired, ErrExpiredToken},
		{"missing tenant", svc, noTenant, ErrMissingTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.ValidateToken(tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func newTestAdminService(t *testing.T) *AdminService {
	t.Helper()
	ctx := context.Background()
	db, err := conn.Open(ctx, conn.DriverSQLite, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return NewAdminService(db, NewJWTService("secret", time.Hour), catalog.NewStore(db))
}

func TestAdminService_RegisterAndLogin(t *testing.T) {
	s := newTestAdminService(t)
	ctx := context.Background()

	admin, err := s.Register(ctx, RegisterRequest{TenantName: "acme", Username: "owner", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotZero(t, admin.TenantID)

	_, err = s.Register(ctx, RegisterRequest{TenantName: "globex", Username: "other", Password: "hunter22"})
	assert.True(t, errors.Is(err, ErrRegistrationClosed))

	resp, err := s.Login(ctx, LoginRequest{Username: "owner", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, admin.TenantID, resp.TenantID)

	claims, err := s.jwt.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.TenantID, claims.TenantID)

	reloaded, err := s.GetByUsername(ctx, "owner")
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLogin)
}

func TestAdminService_LoginFailures(t *testing.T) {
	s := newTestAdminService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterRequest{TenantName: "acme", Username: "owner", Password: "hunter22"})
	require.NoError(t, err)

	_, err = s.Login(ctx, LoginRequest{Username: "owner", Password: "wrong-pass"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = s.Login(ctx, LoginRequest{Username: "nobody", Password: "hunter22"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestAdminService_CreateAdminDuplicate(t *testing.T) {
	s := newTestAdminService(t)
	ctx := context.Background()

	admin, err := s.Register(ctx, RegisterRequest{TenantName: "acme", Username: "owner", Password: "hunter22"})
	require.NoError(t, err)

	_, err = s.CreateAdmin(ctx, admin.TenantID, "owner", "another1")
	assert.True(t, errors.Is(err, ErrAdminExists))
}
