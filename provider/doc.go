// Package provider defines the adapter contract shared by all payment providers
// and the helpers they build on.
//
// # Core Concepts
//
//   - Adapter: implemented once per provider; builds checkout links and verifies callbacks
//   - Registry: maps provider names to adapters
//   - Config: a tenant's api key plus the provider specific extra_config object
//   - Notification: the form fields and headers of a provider callback
//   - SettlementResult: the verified order id, amount and outcome of a callback
//
// # Basic Usage
//
//	registry := provider.NewRegistry(
//	    robokassa.New(robokassa.Options{TestMode: true}),
//	    coinpayments.New(coinpayments.Options{Timeout: 15 * time.Second}),
//	)
//
//	adapter, err := registry.Lookup("robokassa")
//	if err != nil {
//	    return err
//	}
//	creds, err := adapter.ParseCredentials(cfg)
//	if err != nil {
//	    return err
//	}
//	url, err := adapter.BuildCheckoutURL(ctx, creds, provider.CheckoutIntent{
//	    OrderID: order.ID,
//	    Amount:  order.Amount,
//	})
//
// # Callbacks
//
// A callback is handled in two steps. OrderReference reads the order id without
// trusting anything else, so the caller can load the tenant's credentials.
// VerifyAndExtract then checks the signature with those credentials and only
// returns a result when it matches.
//
// # Errors
//
// Adapters wrap the sentinel errors in errors.go; callers map them with errors.Is:
//
//	ErrBadRequest          missing or malformed callback fields
//	ErrSignature           signature or secret mismatch
//	ErrConfiguration       incomplete tenant credentials
//	ErrProviderRejected    the provider answered with an error
//	ErrProviderUnavailable the provider could not be reached
package provider
