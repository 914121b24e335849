package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/response"
	"github.com/mstgnz/storepay/ledger"
	"github.com/mstgnz/storepay/payment"
	"github.com/mstgnz/storepay/provider"
)

// IntentCreator creates payment intents
type IntentCreator interface {
	CreateIntent(ctx context.Context, tenantID, productID int64, providerName, buyerRef string) (*payment.Intent, error)
}

// CallbackReconciler processes provider notifications
type CallbackReconciler interface {
	Reconcile(ctx context.Context, name provider.Name, n provider.Notification, meta payment.CallbackMeta) (*payment.Receipt, error)
}

// PaymentHandler serves intent creation and provider callbacks
type PaymentHandler struct {
	intents  IntentCreator
	recon    CallbackReconciler
	validate *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(intents IntentCreator, recon CallbackReconciler, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{intents: intents, recon: recon, validate: validate}
}

// CreatePaymentRequest is the body of POST /v1/payment/create_payment
type CreatePaymentRequest struct {
	ProductID    int64  `json:"product_id" validate:"required,gt=0"`
	ProviderName string `json:"provider_name,omitempty" validate:"omitempty,provider_name"`
	BuyerRef     string `json:"buyer_ref,omitempty" validate:"omitempty,max=128"`
}

// CreatePaymentResponse is returned for a created intent
type CreatePaymentResponse struct {
	OrderID    int64  `json:"order_id"`
	PaymentURL string `json:"payment_url"`
}

// CreatePayment creates an order for a product and returns its checkout link
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	if tenantID == 0 {
		response.Error(w, http.StatusUnauthorized, "Invalid or missing authentication", nil)
		return
	}

	var req CreatePaymentRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	intent, err := h.intents.CreateIntent(ctx, tenantID, req.ProductID, req.ProviderName, strings.TrimSpace(req.BuyerRef))
	if err != nil {
		status, msg := intentError(err)
		response.Error(w, status, msg, err)
		return
	}

	response.Success(w, http.StatusOK, "Payment created", CreatePaymentResponse{
		OrderID:    intent.OrderID,
		PaymentURL: intent.PaymentURL,
	})
}

func intentError(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, payment.ErrForbidden):
		return http.StatusForbidden, "Product belongs to another tenant"
	case errors.Is(err, payment.ErrNoPaymentConfigured):
		return http.StatusBadRequest, "No payment provider configured"
	case errors.Is(err, provider.ErrUnsupportedProvider):
		return http.StatusBadRequest, "Unsupported payment provider"
	case errors.Is(err, provider.ErrConfiguration):
		return http.StatusBadRequest, "Payment provider configuration is incomplete"
	case errors.Is(err, provider.ErrProviderRejected):
		return http.StatusBadRequest, "Payment provider rejected the request"
	case errors.Is(err, provider.ErrProviderUnavailable):
		return http.StatusBadGateway, "Payment provider unavailable"
	default:
		return http.StatusInternalServerError, "Payment creation failed"
	}
}

// RobokassaCallback handles Robokassa ResultURL notifications
func (h *PaymentHandler) RobokassaCallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.reconcile(w, r, provider.Robokassa); ok {
		response.Detail(w, http.StatusOK, "OK")
	}
}

// CoinPaymentsCallback handles CoinPayments IPN notifications
func (h *PaymentHandler) CoinPaymentsCallback(w http.ResponseWriter, r *http.Request) {
	if receipt, ok := h.reconcile(w, r, provider.CoinPayments); ok {
		response.Detail(w, http.StatusOK, fmt.Sprintf("Order %d IPN processed. Status -> %s", receipt.OrderID, receipt.Status))
	}
}

// reconcile writes the error reply itself and reports whether the caller should answer success
func (h *PaymentHandler) reconcile(w http.ResponseWriter, r *http.Request, name provider.Name) (*payment.Receipt, bool) {
	if err := r.ParseForm(); err != nil {
		response.Detail(w, http.StatusBadRequest, "Malformed form body")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	receipt, err := h.recon.Reconcile(ctx, name, provider.Notification{
		Fields:  r.PostForm,
		Headers: r.Header,
	}, payment.CallbackMeta{
		ClientIP:  middle.GetClientIP(r),
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		status, detail := callbackError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Callback processing failed", err, logger.LogContext{
				Provider:  name.String(),
				RequestID: middleware.GetReqID(r.Context()),
			})
		}
		response.Detail(w, status, detail)
		return nil, false
	}
	return receipt, true
}

// callbackError keeps details generic so a forger learns nothing about which check failed
func callbackError(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, provider.ErrBadRequest):
		return http.StatusBadRequest, "Missing or invalid fields"
	case errors.Is(err, provider.ErrConfiguration):
		return http.StatusBadRequest, "Payment provider is not configured"
	case errors.Is(err, provider.ErrSignature):
		return http.StatusBadRequest, "Invalid signature"
	case errors.Is(err, provider.ErrUnsupportedProvider):
		return http.StatusBadRequest, "Unsupported payment provider"
	default:
		// storage failures are transient; a 5xx lets the provider retry
		return http.StatusInternalServerError, "Temporary failure, retry later"
	}
}
