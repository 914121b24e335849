package robokassa

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mstgnz/storepay/provider"
)

const (
	checkoutURL = "https://auth.robokassa.ru/Merchant/Index.aspx"

	fieldInvID     = "InvId"
	fieldOutSum    = "OutSum"
	fieldSignature = "SignatureValue"
)

// Credentials are a tenant's Robokassa merchant settings
type Credentials struct {
	MerchantLogin string
	Password1     string
	Password2     string
	IsTest        bool
}

func (Credentials) Provider() provider.Name { return provider.Robokassa }

// Options configures the adapter
type Options struct {
	// TestMode is used when a tenant config has no is_test entry
	TestMode bool
}

// Adapter builds signed redirect links and verifies ResultURL callbacks
type Adapter struct {
	testMode bool
}

// New creates a Robokassa adapter
func New(opts Options) *Adapter {
	return &Adapter{testMode: opts.TestMode}
}

func (a *Adapter) Name() provider.Name { return provider.Robokassa }

func (a *Adapter) RequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{Key: "api_key", Required: true, Type: "string", Description: "Robokassa merchant login", Example: "my-shop", MaxLength: 100},
		{Key: "password1", Required: true, Type: "string", Description: "Password #1, signs checkout links", Example: "p1-secret", MinLength: 1},
		{Key: "password2", Required: true, Type: "string", Description: "Password #2, signs ResultURL callbacks", Example: "p2-secret", MinLength: 1},
		{Key: "is_test", Required: false, Type: "boolean", Description: "Send IsTest=1 with checkout links", Example: "true"},
	}
}

func (a *Adapter) ParseCredentials(cfg provider.Config) (provider.Credentials, error) {
	if err := provider.ValidateConfigFields(a.Name(), cfg.Fields(), a.RequiredConfig()); err != nil {
		return nil, err
	}

	isTest := a.testMode
	if raw := cfg.Value("is_test"); raw != "" {
		isTest, _ = strconv.ParseBool(raw)
	}

	return Credentials{
		MerchantLogin: cfg.APIKey,
		Password1:     cfg.Value("password1"),
		Password2:     cfg.Value("password2"),
		IsTest:        isTest,
	}, nil
}

func credentials(c provider.Credentials) (Credentials, error) {
	creds, ok := c.(Credentials)
	if !ok {
		return Credentials{}, fmt.Errorf("%w: robokassa credentials expected", provider.ErrConfiguration)
	}
	return creds, nil
}

// BuildCheckoutURL is a pure function of the credentials, order id and amount
func (a *Adapter) BuildCheckoutURL(_ context.Context, c provider.Credentials, intent provider.CheckoutIntent) (string, error) {
	creds, err := credentials(c)
	if err != nil {
		return "", err
	}
	if intent.OrderID <= 0 {
		return "", fmt.Errorf("robokassa: invalid order id %d", intent.OrderID)
	}
	if intent.Amount.IsNegative() {
		return "", fmt.Errorf("robokassa: negative amount %s", intent.Amount)
	}

	outSum := intent.Amount.StringFixed(2)
	invID := strconv.FormatInt(intent.OrderID, 10)
	signature := LinkSignature(creds.MerchantLogin, outSum, creds.Password1, invID)

	var b strings.Builder
	b.WriteString(checkoutURL)
	b.WriteString("?MerchantLogin=")
	b.WriteString(url.QueryEscape(creds.MerchantLogin))
	b.WriteString("&OutSum=")
	b.WriteString(outSum)
	b.WriteString("&InvId=")
	b.WriteString(invID)
	b.WriteString("&SignatureValue=")
	b.WriteString(signature)
	if creds.IsTest {
		b.WriteString("&IsTest=1")
	}
	return b.String(), nil
}

func (a *Adapter) OrderReference(n provider.Notification) (int64, error) {
	for _, f := range []string{fieldInvID, fieldOutSum, fieldSignature} {
		if strings.TrimSpace(n.Fields.Get(f)) == "" {
			return 0, fmt.Errorf("%w: missing %s", provider.ErrBadRequest, f)
		}
	}
	return provider.ParseOrderID(fieldInvID, n.Fields.Get(fieldInvID))
}

// VerifyAndExtract checks SignatureValue against the received OutSum and InvId.
// Robokassa only calls ResultURL for successful payments, so the outcome is always paid.
func (a *Adapter) VerifyAndExtract(c provider.Credentials, n provider.Notification) (*provider.SettlementResult, error) {
	creds, err := credentials(c)
	if err != nil {
		return nil, err
	}

	outSum := n.Fields.Get(fieldOutSum)
	invID := n.Fields.Get(fieldInvID)
	signature := n.Fields.Get(fieldSignature)
	if outSum == "" || invID == "" || signature == "" {
		return nil, fmt.Errorf("%w: missing callback fields", provider.ErrSignature)
	}

	if !provider.EqualHex(signature, CallbackSignature(outSum, invID, creds.Password2)) {
		return nil, provider.ErrSignature
	}

	orderID, err := provider.ParseOrderID(fieldInvID, invID)
	if err != nil {
		return nil, err
	}

	return &provider.SettlementResult{
		OrderID:   orderID,
		Outcome:   provider.OutcomePaid,
		RawStatus: "paid",
		Amount:    outSum,
	}, nil
}

// LinkSignature is MD5("login:OutSum:password1:InvId")
func LinkSignature(login, outSum, password1, invID string) string {
	return provider.MD5Hex(login + ":" + outSum + ":" + password1 + ":" + invID)
}

// CallbackSignature is MD5("OutSum:InvId:password2")
func CallbackSignature(outSum, invID, password2 string) string {
	return provider.MD5Hex(outSum + ":" + invID + ":" + password2)
}
