package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/infra/metrics"
	"github.com/mstgnz/storepay/ledger"
	"github.com/mstgnz/storepay/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Intent is a created order together with the link the buyer pays through
type Intent struct {
	OrderID    int64         `json:"order_id"`
	PaymentURL string        `json:"payment_url"`
	Provider   provider.Name `json:"provider_name"`
}

// IntentService creates orders and their provider checkout links
type IntentService struct {
	products ProductReader
	orders   OrderLedger
	configs  ConfigReader
	registry *provider.Registry
	metrics  *metrics.Metrics
}

// NewIntentService creates an intent service; m may be nil
func NewIntentService(products ProductReader, orders OrderLedger, configs ConfigReader, registry *provider.Registry, m *metrics.Metrics) *IntentService {
	return &IntentService{
		products: products,
		orders:   orders,
		configs:  configs,
		registry: registry,
		metrics:  m,
	}
}

// CreateIntent creates a pending order for the product and returns the checkout link.
// An empty providerName selects the tenant's first configured provider. buyerRef is
// optional and is carried to the paid notice. The order is kept pending when the link
// cannot be created.
func (s *IntentService) CreateIntent(ctx context.Context, tenantID, productID int64, providerName, buyerRef string) (*Intent, error) {
	ctx, span := tracer.Start(ctx, "Payment.CreateIntent", trace.WithAttributes(
		attribute.Int64("tenant.id", tenantID),
		attribute.Int64("product.id", productID),
		attribute.String("provider.requested", providerName),
	))
	defer span.End()

	intent, name, err := s.createIntent(ctx, tenantID, productID, providerName, buyerRef)
	label := name.String()
	if label == "" {
		label = "unknown"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.IntentCreated(label, intentResult(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", intent.OrderID), attribute.String("provider.name", label))
	s.metrics.IntentCreated(label, "ok")
	return intent, nil
}

func (s *IntentService) createIntent(ctx context.Context, tenantID, productID int64, providerName, buyerRef string) (*Intent, provider.Name, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, "", err
	}
	if product.TenantID != tenantID {
		return nil, "", ErrForbidden
	}

	providerName = strings.ToLower(strings.TrimSpace(providerName))
	order, err := s.orders.CreateOrder(ctx, ledger.NewOrder{
		TenantID:  tenantID,
		ProductID: productID,
		Provider:  providerName,
		BuyerRef:  buyerRef,
		Amount:    product.Price,
	})
	if err != nil {
		return nil, "", err
	}

	logCtx := logger.LogContext{
		TenantID: tenantString(tenantID),
		Provider: providerName,
		Fields:   map[string]any{"order_id": order.ID, "product_id": productID},
	}

	cfg, err := s.resolveConfig(ctx, tenantID, providerName)
	if err != nil {
		logger.Warn("Payment intent left pending: "+err.Error(), logCtx)
		return nil, provider.Name(providerName), err
	}

	adapter, err := s.registry.Get(cfg.Provider)
	if err != nil {
		return nil, cfg.Provider, err
	}

	providerCfg, err := cfg.ProviderConfig()
	if err != nil {
		return nil, cfg.Provider, err
	}
	creds, err := adapter.ParseCredentials(providerCfg)
	if err != nil {
		return nil, cfg.Provider, err
	}

	if string(cfg.Provider) != providerName {
		if err := s.orders.AttachProvider(ctx, order.ID, cfg.Provider.String()); err != nil {
			return nil, cfg.Provider, fmt.Errorf("failed to record provider on order %d: %w", order.ID, err)
		}
	}

	logCtx.Provider = cfg.Provider.String()
	start := time.Now()
	url, err := adapter.BuildCheckoutURL(ctx, creds, provider.CheckoutIntent{
		OrderID:     order.ID,
		TenantID:    tenantID,
		Provider:    cfg.Provider,
		Amount:      product.Price,
		Description: product.Title,
	})
	s.metrics.ObserveProvider(cfg.Provider.String(), time.Since(start))
	if err != nil {
		logger.Error("Failed to create checkout link", err, logCtx)
		return nil, cfg.Provider, err
	}

	logger.Info("Payment intent created", logCtx)
	return &Intent{OrderID: order.ID, PaymentURL: url, Provider: cfg.Provider}, cfg.Provider, nil
}

func (s *IntentService) resolveConfig(ctx context.Context, tenantID int64, providerName string) (*config.PaymentConfig, error) {
	var (
		cfg *config.PaymentConfig
		err error
	)
	if providerName == "" {
		cfg, err = s.configs.GetDefault(ctx, tenantID)
	} else {
		name, perr := provider.ParseName(providerName)
		if perr != nil {
			return nil, perr
		}
		cfg, err = s.configs.Get(ctx, tenantID, name)
	}
	if errors.Is(err, config.ErrNotFound) {
		return nil, ErrNoPaymentConfigured
	}
	return cfg, err
}

func intentResult(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNoPaymentConfigured), errors.Is(err, provider.ErrConfiguration):
		return "config_error"
	case errors.Is(err, provider.ErrUnsupportedProvider):
		return "unsupported"
	case errors.Is(err, provider.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, provider.ErrProviderRejected):
		return "rejected"
	default:
		return "error"
	}
}
