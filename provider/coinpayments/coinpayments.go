package coinpayments

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/storepay/provider"
)

const (
	defaultAPIURL    = "https://www.coinpayments.net/api.php"
	defaultCurrency1 = "USD"
	defaultCurrency2 = "BTC"

	headerHMAC = "HMAC"

	fieldIPNMode   = "ipn_mode"
	fieldCustom    = "custom"
	fieldStatus    = "status"
	fieldIPNSecret = "ipn_secret"
)

// Credentials are a tenant's CoinPayments API keys and IPN settings
type Credentials struct {
	PublicKey  string
	PrivateKey string
	IPNSecret  string
	MerchantID string
	Currency1  string
	Currency2  string
	IPNURL     string
}

func (Credentials) Provider() provider.Name { return provider.CoinPayments }

// Options configures the adapter
type Options struct {
	APIURL  string
	IPNURL  string // used when a tenant config has no ipn_url
	Timeout time.Duration
}

// Adapter creates transactions through the CoinPayments API and verifies IPN callbacks
type Adapter struct {
	apiURL string
	ipnURL string
	client *provider.ProviderHTTPClient
}

// New creates a CoinPayments adapter
func New(opts Options) *Adapter {
	if opts.APIURL == "" {
		opts.APIURL = defaultAPIURL
	}
	return &Adapter{
		apiURL: opts.APIURL,
		ipnURL: opts.IPNURL,
		client: provider.NewProviderHTTPClient(provider.NewHTTPClientConfig(opts.APIURL, opts.Timeout)),
	}
}

func (a *Adapter) Name() provider.Name { return provider.CoinPayments }

func (a *Adapter) RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{Key: "api_key", Required: true, Type: "string", Description: "CoinPayments public API key", Example: "pub_xxx"},
		{Key: "private_key", Required: true, Type: "string", Description: "CoinPayments private API key, signs API calls and IPN", Example: "priv_xxx"},
		{Key: "ipn_secret", Required: true, Type: "string", Description: "IPN secret configured in the merchant account", Example: "ipn-secret"},
		{Key: "merchant_id", Required: false, Type: "string", Description: "Merchant id", Example: "abc123"},
		{Key: "currency1", Required: false, Type: "string", Description: "Pricing currency", Example: "USD", Pattern: `^[A-Za-z0-9.]{2,10}$`},
		{Key: "currency2", Required: false, Type: "string", Description: "Currency the buyer pays in", Example: "BTC", Pattern: `^[A-Za-z0-9.]{2,10}$`},
		{Key: "ipn_url", Required: false, Type: "url", Description: "IPN callback URL", Example: "https://shop.example/payment/coinpayments_callback/"},
	}
}

func (a *Adapter) ParseCredentials(cfg provider.Config) (provider.Credentials, error) {
	if err := provider.ValidateConfigFields(a.Name(), cfg.Fields(), a.RequiredConfig()); err != nil {
		return nil, err
	}

	creds := Credentials{
		PublicKey:  cfg.APIKey,
		PrivateKey: cfg.Value("private_key"),
		IPNSecret:  cfg.Value("ipn_secret"),
		MerchantID: cfg.Value("merchant_id"),
		Currency1:  strings.ToUpper(cfg.Value("currency1")),
		Currency2:  strings.ToUpper(cfg.Value("currency2")),
		IPNURL:     cfg.Value("ipn_url"),
	}
	if creds.Currency1 == "" {
		creds.Currency1 = defaultCurrency1
	}
	if creds.Currency2 == "" {
		creds.Currency2 = defaultCurrency2
	}
	if creds.IPNURL == "" {
		creds.IPNURL = a.ipnURL
	}
	return creds, nil
}

func credentials(c provider.Credentials) (Credentials, error) {
	creds, ok := c.(Credentials)
	if !ok {
		return Credentials{}, fmt.Errorf("%w: coinpayments credentials expected", provider.ErrConfiguration)
	}
	return creds, nil
}

type createTransactionResponse struct {
	Error  string `json:"error"`
	Result *struct {
		TxnID       string `json:"txn_id"`
		CheckoutURL string `json:"checkout_url"`
		StatusURL   string `json:"status_url"`
	} `json:"result"`
}

// BuildCheckoutURL calls create_transaction and returns the hosted checkout link.
// The call is made once; retrying is left to the caller.
func (a *Adapter) BuildCheckoutURL(ctx context.Context, c provider.Credentials, intent provider.CheckoutIntent) (string, error) {
	creds, err := credentials(c)
	if err != nil {
		return "", err
	}
	if intent.OrderID <= 0 {
		return "", fmt.Errorf("coinpayments: invalid order id %d", intent.OrderID)
	}
	if intent.Amount.IsNegative() {
		return "", fmt.Errorf("coinpayments: negative amount %s", intent.Amount)
	}

	body := TransactionBody(creds, intent)
	resp, err := a.client.SendForm(ctx, &provider.HTTPRequest{
		Method:  http.MethodPost,
		Headers: map[string]string{headerHMAC: provider.HMACSHA512Hex(creds.PrivateKey, body)},
		Body:    []byte(body),
	})
	if err != nil {
		return "", fmt.Errorf("%w: coinpayments: %v", provider.ErrProviderUnavailable, err)
	}

	var out createTransactionResponse
	if err := a.client.ParseJSONResponse(resp, &out); err != nil {
		return "", fmt.Errorf("%w: coinpayments: malformed response", provider.ErrProviderUnavailable)
	}
	if out.Error != "ok" {
		msg := out.Error
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("%w: coinpayments: %s", provider.ErrProviderRejected, msg)
	}
	if out.Result == nil || out.Result.CheckoutURL == "" {
		return "", fmt.Errorf("%w: coinpayments: response has no checkout_url", provider.ErrProviderUnavailable)
	}
	return out.Result.CheckoutURL, nil
}

// TransactionBody renders the create_transaction form in the order CoinPayments documents
func TransactionBody(creds Credentials, intent provider.CheckoutIntent) string {
	orderID := strconv.FormatInt(intent.OrderID, 10)
	pairs := [][2]string{
		{"version", "1"},
		{"cmd", "create_transaction"},
		{"key", creds.PublicKey},
		{"amount", intent.Amount.StringFixed(2)},
		{"currency1", creds.Currency1},
		{"currency2", creds.Currency2},
		{"item_name", "Order #" + orderID},
		{"custom", orderID},
	}
	if creds.IPNURL != "" {
		pairs = append(pairs, [2]string{"ipn_url", creds.IPNURL})
	}

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	return b.String()
}

func (a *Adapter) OrderReference(n provider.Notification) (int64, error) {
	if mode := n.Fields.Get(fieldIPNMode); mode != "hmac" {
		return 0, fmt.Errorf("%w: ipn_mode %q is not hmac", provider.ErrBadRequest, mode)
	}
	if n.Headers.Get(headerHMAC) == "" {
		return 0, fmt.Errorf("%w: missing HMAC header", provider.ErrBadRequest)
	}
	if strings.TrimSpace(n.Fields.Get(fieldStatus)) == "" {
		return 0, fmt.Errorf("%w: missing %s", provider.ErrBadRequest, fieldStatus)
	}
	return provider.ParseOrderID(fieldCustom, n.Fields.Get(fieldCustom))
}

// VerifyAndExtract requires ipn_mode=hmac, a matching ipn_secret and a valid HMAC
// over the sorted form before the status is read
func (a *Adapter) VerifyAndExtract(c provider.Credentials, n provider.Notification) (*provider.SettlementResult, error) {
	creds, err := credentials(c)
	if err != nil {
		return nil, err
	}

	if n.Fields.Get(fieldIPNMode) != "hmac" {
		return nil, fmt.Errorf("%w: ipn_mode is not hmac", provider.ErrSignature)
	}
	if creds.IPNSecret == "" || subtle.ConstantTimeCompare([]byte(n.Fields.Get(fieldIPNSecret)), []byte(creds.IPNSecret)) != 1 {
		return nil, fmt.Errorf("%w: ipn_secret mismatch", provider.ErrSignature)
	}
	header := n.Headers.Get(headerHMAC)
	if header == "" || !provider.EqualHex(header, provider.HMACSHA512Hex(creds.PrivateKey, provider.CanonicalForm(n.Fields))) {
		return nil, fmt.Errorf("%w: hmac mismatch", provider.ErrSignature)
	}

	orderID, err := provider.ParseOrderID(fieldCustom, n.Fields.Get(fieldCustom))
	if err != nil {
		return nil, err
	}
	rawStatus := strings.TrimSpace(n.Fields.Get(fieldStatus))
	status, err := strconv.Atoi(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid status %q", provider.ErrBadRequest, rawStatus)
	}

	return &provider.SettlementResult{
		OrderID:   orderID,
		Outcome:   MapStatus(status),
		RawStatus: rawStatus,
		Amount:    n.Fields.Get("amount1"),
	}, nil
}

// MapStatus converts a CoinPayments status code: >=100 or 2 is paid, negative is failed
func MapStatus(status int) provider.Outcome {
	switch {
	case status >= 100 || status == 2:
		return provider.OutcomePaid
	case status < 0:
		return provider.OutcomeFailed
	default:
		return provider.OutcomePending
	}
}
