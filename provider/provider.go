package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Name identifies a supported payment provider
type Name string

const (
	Robokassa    Name = "robokassa"
	CoinPayments Name = "coinpayments"
)

// Names lists every provider the service knows about
var Names = []Name{Robokassa, CoinPayments}

// ParseName validates a provider name against the closed set of supported providers
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Names {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, s)
}

func (n Name) String() string { return string(n) }

// ConfigField represents a required configuration field for a payment provider
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`
	MinLength   int    `json:"minLength,omitempty"`
	MaxLength   int    `json:"maxLength,omitempty"`
}

// Config is the raw tenant configuration of one provider: the api key and
// the provider specific extra_config object
type Config struct {
	APIKey string
	Extra  map[string]any
}

// ParseConfig builds a Config from the stored api key and extra_config JSON
func ParseConfig(apiKey, extraJSON string) (Config, error) {
	cfg := Config{APIKey: apiKey, Extra: map[string]any{}}
	if strings.TrimSpace(extraJSON) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(extraJSON), &cfg.Extra); err != nil {
		return Config{}, fmt.Errorf("%w: extra_config is not a JSON object", ErrConfiguration)
	}
	if cfg.Extra == nil {
		cfg.Extra = map[string]any{}
	}
	return cfg, nil
}

// Value returns an extra_config entry rendered as a string; "" when absent
func (c Config) Value(key string) string {
	if key == "api_key" {
		return c.APIKey
	}
	v, ok := c.Extra[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Fields flattens the config, api_key included, for field validation
func (c Config) Fields() map[string]string {
	out := make(map[string]string, len(c.Extra)+1)
	for k := range c.Extra {
		out[k] = c.Value(k)
	}
	out["api_key"] = c.APIKey
	return out
}

// Credentials is the parsed, provider specific form of a Config.
// Each adapter defines its own concrete type.
type Credentials interface {
	Provider() Name
}

// CheckoutIntent carries what an adapter needs to build a checkout link
type CheckoutIntent struct {
	OrderID     int64
	TenantID    int64
	Provider    Name
	Amount      decimal.Decimal
	Description string
}

// Notification is an untrusted inbound provider callback
type Notification struct {
	Fields  url.Values
	Headers http.Header
}

// Outcome is the provider neutral result of a verified callback
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// SettlementResult is what a verified notification says about an order
type SettlementResult struct {
	OrderID   int64
	Outcome   Outcome
	RawStatus string
	Amount    string
}

// Adapter is the capability set every payment provider implements
type Adapter interface {
	Name() Name

	// RequiredConfig describes the api_key and extra_config fields the provider needs
	RequiredConfig() []ConfigField

	// ParseCredentials turns a tenant config into typed credentials, ErrConfiguration on failure
	ParseCredentials(cfg Config) (Credentials, error)

	// BuildCheckoutURL returns the link the buyer is redirected to
	BuildCheckoutURL(ctx context.Context, creds Credentials, intent CheckoutIntent) (string, error)

	// VerifyAndExtract authenticates a notification before reading anything else from it
	VerifyAndExtract(creds Credentials, n Notification) (*SettlementResult, error)

	// OrderReference reads the order id a notification claims to be about.
	// It is used only to locate the tenant whose credentials verify the notification.
	OrderReference(n Notification) (int64, error)
}

// ParseOrderID parses a positive order id taken from a notification field
func ParseOrderID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrBadRequest, field)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrBadRequest, field)
	}
	return id, nil
}
