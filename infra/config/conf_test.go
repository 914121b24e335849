package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp(t *testing.T) {
	config1 := App()
	config2 := App()

	require.NotNil(t, config1)
	assert.Same(t, config1, config2, "App() should return singleton instance")
	assert.NotNil(t, config1.Validator)
	assert.NotEmpty(t, config1.SecretKey)
}

func TestLoadAppConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_PORT", "DB_DRIVER", "DB_DSN", "PROVIDER_TIMEOUT", "CALLBACK_CONCURRENCY",
		"ORDER_SWEEP_INTERVAL", "ORDER_SWEEP_POLICY", "ROBOKASSA_TEST_MODE", "COINPAYMENTS_API_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadAppConfig()
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "data/storepay.db", cfg.DBDSN)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 32, cfg.CallbackConcurrency)
	assert.Equal(t, time.Duration(0), cfg.SweepInterval)
	assert.Equal(t, "keep", cfg.SweepPolicy)
	assert.True(t, cfg.RobokassaTestMode)
	assert.Equal(t, "https://www.coinpayments.net/api.php", cfg.CoinPaymentsAPIURL)
}

func TestLoadAppConfig_FromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("CALLBACK_CONCURRENCY", "4")
	t.Setenv("ORDER_SWEEP_INTERVAL", "10m")
	t.Setenv("ORDER_SWEEP_POLICY", "fail")
	t.Setenv("ROBOKASSA_TEST_MODE", "false")
	t.Setenv("ENABLE_OPENSEARCH_LOGGING", "true")

	cfg := LoadAppConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 4, cfg.CallbackConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "fail", cfg.SweepPolicy)
	assert.False(t, cfg.RobokassaTestMode)
	assert.True(t, cfg.EnableLogging)
}

func TestEnvHelpers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{"string_fallback", "", func(t *testing.T) {
			assert.Equal(t, "def", GetEnv("STOREPAY_TEST_KEY", "def"))
		}},
		{"bool_invalid_uses_default", "maybe", func(t *testing.T) {
			assert.True(t, GetBoolEnv("STOREPAY_TEST_KEY", true))
		}},
		{"int_parsed", "42", func(t *testing.T) {
			assert.Equal(t, 42, GetIntEnv("STOREPAY_TEST_KEY", 1))
		}},
		{"int_invalid_uses_default", "x", func(t *testing.T) {
			assert.Equal(t, 1, GetIntEnv("STOREPAY_TEST_KEY", 1))
		}},
		{"duration_parsed", "90s", func(t *testing.T) {
			assert.Equal(t, 90*time.Second, GetDurationEnv("STOREPAY_TEST_KEY", time.Second))
		}},
		{"duration_invalid_uses_default", "soon", func(t *testing.T) {
			assert.Equal(t, time.Second, GetDurationEnv("STOREPAY_TEST_KEY", time.Second))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STOREPAY_TEST_KEY", tt.value)
			tt.check(t)
		})
	}
}
