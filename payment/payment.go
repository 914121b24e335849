package payment

import (
	"context"
	"strconv"

	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/infra/opensearch"
	"github.com/mstgnz/storepay/ledger"
	"github.com/mstgnz/storepay/provider"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/mstgnz/storepay/payment")

// ProductReader resolves the product an intent is created for
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

// OrderLedger is the part of the ledger the payment flow writes to
type OrderLedger interface {
	CreateOrder(ctx context.Context, in ledger.NewOrder) (*ledger.Order, error)
	Get(ctx context.Context, id int64) (*ledger.Order, error)
	AttachProvider(ctx context.Context, id int64, providerName string) error
	Settle(ctx context.Context, id int64, target ledger.Status) (*ledger.Settlement, error)
}

// ConfigReader resolves a tenant's provider credentials
type ConfigReader interface {
	Get(ctx context.Context, tenantID int64, name provider.Name) (*config.PaymentConfig, error)
	GetDefault(ctx context.Context, tenantID int64) (*config.PaymentConfig, error)
}

// Notifier is told about every order that actually moved to paid
type Notifier interface {
	OrderPaid(ctx context.Context, order *ledger.Order) error
}

// AuditSink records processed callbacks
type AuditSink interface {
	LogCallbackAudit(ctx context.Context, audit opensearch.CallbackAudit) error
}

// LogNotifier writes paid orders to the system log. It is used when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) OrderPaid(_ context.Context, order *ledger.Order) error {
	fields := map[string]any{
		"order_id":   order.ID,
		"product_id": order.ProductID,
		"amount":     order.Amount.StringFixed(2),
	}
	if order.BuyerRef != "" {
		fields["buyer_ref"] = order.BuyerRef
	}
	logger.Info("Order paid", logger.LogContext{
		TenantID: tenantString(order.TenantID),
		Provider: order.Provider,
		Fields:   fields,
	})
	return nil
}

func tenantString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
