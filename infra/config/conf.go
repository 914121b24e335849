package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mstgnz/storepay/infra/validate"
)

type CKey string

const TenantKey CKey = "tenant_id"

type Config struct {
	Validator *validator.Validate
	SecretKey string
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port        string
	Environment string

	DBDriver string
	DBDSN    string

	ProviderTimeout     time.Duration
	CallbackConcurrency int
	ConfigCacheTTL      time.Duration
	ConfigCacheSize     int

	RobokassaTestMode  bool
	CoinPaymentsAPIURL string
	CoinPaymentsIPNURL string

	SweepInterval time.Duration
	SweepAge      time.Duration
	SweepPolicy   string

	RateLimitPerMinute int
	TokenTTL           time.Duration

	RabbitURL      string
	RabbitExchange string

	OpenSearchURL  string
	OpenSearchUser string
	OpenSearchPass string
	EnableLogging  bool
	LoggingLevel   string
}

var (
	instance          *Config
	appConfigInstance *AppConfig
	mu                sync.Mutex
)

func App() *Config {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		secret := GetEnv("JWT_SECRET", "")
		if secret == "" {
			// tokens are invalidated on every restart when no secret is configured
			secret = uuid.New().String()
		}
		instance = &Config{
			Validator: validate.New(),
			SecretKey: secret,
		}
	}
	return instance
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if appConfigInstance == nil {
		appConfigInstance = LoadAppConfig()
	}
	return appConfigInstance
}

// LoadAppConfig reads the configuration from the environment without caching it
func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Port:        GetEnv("APP_PORT", "9999"),
		Environment: GetEnv("ENVIRONMENT", "development"),

		DBDriver: GetEnv("DB_DRIVER", "sqlite3"),
		DBDSN:    GetEnv("DB_DSN", "data/storepay.db"),

		ProviderTimeout:     GetDurationEnv("PROVIDER_TIMEOUT", 15*time.Second),
		CallbackConcurrency: GetIntEnv("CALLBACK_CONCURRENCY", 32),
		ConfigCacheTTL:      GetDurationEnv("CONFIG_CACHE_TTL", 5*time.Minute),
		ConfigCacheSize:     GetIntEnv("CONFIG_CACHE_SIZE", 1024),

		RobokassaTestMode:  GetBoolEnv("ROBOKASSA_TEST_MODE", true),
		CoinPaymentsAPIURL: GetEnv("COINPAYMENTS_API_URL", "https://www.coinpayments.net/api.php"),
		CoinPaymentsIPNURL: GetEnv("COINPAYMENTS_IPN_URL", ""),

		SweepInterval: GetDurationEnv("ORDER_SWEEP_INTERVAL", 0),
		SweepAge:      GetDurationEnv("ORDER_SWEEP_AGE", 24*time.Hour),
		SweepPolicy:   GetEnv("ORDER_SWEEP_POLICY", "keep"),

		RateLimitPerMinute: GetIntEnv("RATE_LIMIT_PER_MINUTE", 120),
		TokenTTL:           GetDurationEnv("JWT_TTL", 24*time.Hour),

		RabbitURL:      GetEnv("RABBITMQ_URL", ""),
		RabbitExchange: GetEnv("RABBITMQ_EXCHANGE", "storepay.events"),

		OpenSearchURL:  GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser: GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass: GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableLogging:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
		LoggingLevel:   GetEnv("LOGGING_LEVEL", "info"),
	}
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv parses values like "15s" or "1h"
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
