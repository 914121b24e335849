package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/opensearch"
	"github.com/mstgnz/storepay/infra/response"
)

// AuditSearcher searches indexed callback audits
type AuditSearcher interface {
	SearchCallbackAudits(ctx context.Context, tenantID string, orderID int64, limit int) ([]opensearch.CallbackAudit, error)
}

// AuditHandler exposes the callback audit trail of a tenant
type AuditHandler struct {
	searcher AuditSearcher
}

// NewAuditHandler creates a new audit handler; searcher may be nil when OpenSearch is disabled
func NewAuditHandler(searcher AuditSearcher) *AuditHandler {
	return &AuditHandler{searcher: searcher}
}

// ListCallbacks returns the newest processed callbacks, optionally for one order
func (h *AuditHandler) ListCallbacks(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		response.Error(w, http.StatusServiceUnavailable, "Audit logging is not enabled", nil)
		return
	}

	tenantID := middle.GetTenantIDFromContext(r.Context())
	var orderID int64
	if raw := r.URL.Query().Get("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Error(w, http.StatusBadRequest, "Invalid order id", nil)
			return
		}
		orderID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	audits, err := h.searcher.SearchCallbackAudits(ctx, strconv.FormatInt(tenantID, 10), orderID, queryInt(r, "limit", 50))
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "Failed to search callback audits", err)
		return
	}

	response.Success(w, http.StatusOK, "Callback audits", map[string]any{
		"count":     len(audits),
		"callbacks": audits,
	})
}
