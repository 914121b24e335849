package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/infra/metrics"
	"github.com/mstgnz/storepay/infra/opensearch"
	"github.com/mstgnz/storepay/ledger"
	"github.com/mstgnz/storepay/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Callback results recorded in metrics and the audit index
const (
	ResultApplied    = "applied"
	ResultNoOp       = "noop"
	ResultConflict   = "conflict"
	ResultIgnored    = "ignored"
	ResultBadRequest = "bad_request"
	ResultNotFound   = "order_not_found"
	ResultConfig     = "config_error"
	ResultSignature  = "signature_rejected"
	ResultError      = "error"
)

// CallbackMeta is transport information kept for the audit trail
type CallbackMeta struct {
	ClientIP  string
	RequestID string
}

// Receipt describes what a verified callback did to its order
type Receipt struct {
	OrderID  int64
	Outcome  provider.Outcome
	Status   ledger.Status
	Applied  bool
	Conflict bool
}

// Reconciler verifies provider callbacks and settles the orders they report on
type Reconciler struct {
	orders   OrderLedger
	configs  ConfigReader
	registry *provider.Registry
	notifier Notifier
	audit    AuditSink
	metrics  *metrics.Metrics
}

// NewReconciler creates a reconciler; audit and m may be nil
func NewReconciler(orders OrderLedger, configs ConfigReader, registry *provider.Registry, notifier Notifier, audit AuditSink, m *metrics.Metrics) *Reconciler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Reconciler{
		orders:   orders,
		configs:  configs,
		registry: registry,
		notifier: notifier,
		audit:    audit,
		metrics:  m,
	}
}

// Reconcile processes one notification for the named provider. A nil error means the
// provider must be answered with success, including replays and conflicting outcomes.
func (r *Reconciler) Reconcile(ctx context.Context, providerName provider.Name, n provider.Notification, meta CallbackMeta) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "Payment.Reconcile", trace.WithAttributes(
		attribute.String("provider.name", providerName.String()),
	))
	defer span.End()

	audit := opensearch.CallbackAudit{
		Provider:  providerName.String(),
		ClientIP:  meta.ClientIP,
		RequestID: meta.RequestID,
		Form:      opensearch.SanitizeForm(n.Fields),
	}

	receipt, err := r.reconcile(ctx, providerName, n, &audit)
	if err != nil {
		audit.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int64("order.id", receipt.OrderID),
			attribute.String("order.status", string(receipt.Status)),
			attribute.Bool("settlement.applied", receipt.Applied),
		)
	}

	r.metrics.CallbackHandled(providerName.String(), audit.Result)
	r.recordAudit(ctx, audit)
	return receipt, err
}

func (r *Reconciler) reconcile(ctx context.Context, providerName provider.Name, n provider.Notification, audit *opensearch.CallbackAudit) (*Receipt, error) {
	audit.Result = ResultBadRequest
	adapter, err := r.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	orderID, err := adapter.OrderReference(n)
	if err != nil {
		return nil, err
	}
	audit.OrderID = orderID

	// the stored order only tells which tenant's credentials verify the notification
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrOrderNotFound) {
			audit.Result = ResultNotFound
		} else {
			audit.Result = ResultError
		}
		return nil, err
	}
	audit.TenantID = tenantString(order.TenantID)

	logCtx := logger.LogContext{
		TenantID: audit.TenantID,
		Provider: providerName.String(),
		Fields:   map[string]any{"order_id": orderID},
	}

	// an order checked out through one provider is settled only by that provider
	if order.Provider != "" && order.Provider != providerName.String() {
		audit.Result = ResultSignature
		logCtx.Fields["order_provider"] = order.Provider
		logger.Warn("Callback provider does not match the order", logCtx)
		return nil, fmt.Errorf("%w: order was created for %s", provider.ErrSignature, order.Provider)
	}

	audit.Result = ResultConfig
	creds, err := r.credentials(ctx, adapter, order.TenantID)
	if err != nil {
		logger.Warn("Callback rejected: "+err.Error(), logCtx)
		return nil, err
	}

	result, err := adapter.VerifyAndExtract(creds, n)
	if err != nil {
		audit.Result = ResultSignature
		logger.Warn("Callback signature rejected", logCtx)
		return nil, err
	}
	if result.OrderID != orderID {
		audit.Result = ResultSignature
		return nil, fmt.Errorf("%w: order reference mismatch", provider.ErrSignature)
	}
	audit.Outcome = string(result.Outcome)

	receipt := &Receipt{OrderID: orderID, Outcome: result.Outcome, Status: order.Status}
	if result.Outcome == provider.OutcomePending {
		audit.Result = ResultIgnored
		logCtx.Fields["raw_status"] = result.RawStatus
		logger.Info("Callback reports a pending payment, order left unchanged", logCtx)
		return receipt, nil
	}

	settlement, err := r.orders.Settle(ctx, orderID, ledger.Status(result.Outcome))
	if err != nil {
		audit.Result = ResultError
		if errors.Is(err, ledger.ErrOrderNotFound) {
			audit.Result = ResultNotFound
		}
		return nil, err
	}

	receipt.Status = settlement.Order.Status
	receipt.Applied = settlement.Applied
	receipt.Conflict = settlement.Conflict

	switch {
	case settlement.Conflict:
		audit.Result = ResultConflict
		r.metrics.SettlementConflict(providerName.String())
		logCtx.Fields["recorded_status"] = string(settlement.Order.Status)
		logCtx.Fields["reported_outcome"] = string(result.Outcome)
		logger.Error("Conflicting settlement ignored", ledger.ErrInvalidTransition, logCtx)
	case settlement.Applied:
		audit.Result = ResultApplied
		logCtx.Fields["status"] = string(settlement.Order.Status)
		logger.Info("Order settled", logCtx)
		if settlement.Order.Status == ledger.StatusPaid {
			r.notify(ctx, settlement.Order, logCtx)
		}
	default:
		audit.Result = ResultNoOp
		logger.Debug("Duplicate callback, order already settled", logCtx)
	}

	return receipt, nil
}

func (r *Reconciler) credentials(ctx context.Context, adapter provider.Adapter, tenantID int64) (provider.Credentials, error) {
	cfg, err := r.configs.Get(ctx, tenantID, adapter.Name())
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s is not configured for the tenant", provider.ErrConfiguration, adapter.Name())
		}
		return nil, err
	}
	providerCfg, err := cfg.ProviderConfig()
	if err != nil {
		return nil, err
	}
	return adapter.ParseCredentials(providerCfg)
}

// notify failures are logged only; the provider has already been served
func (r *Reconciler) notify(ctx context.Context, order *ledger.Order, logCtx logger.LogContext) {
	if err := r.notifier.OrderPaid(ctx, order); err != nil {
		r.metrics.NotificationSent("error")
		logger.Error("Failed to publish order paid notification", err, logCtx)
		return
	}
	r.metrics.NotificationSent("ok")
}

func (r *Reconciler) recordAudit(ctx context.Context, audit opensearch.CallbackAudit) {
	if r.audit == nil {
		return
	}
	if err := r.audit.LogCallbackAudit(ctx, audit); err != nil {
		logger.Warn("Failed to index callback audit: "+err.Error(), logger.LogContext{
			TenantID: audit.TenantID,
			Provider: audit.Provider,
		})
	}
}
