package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// CallbackAudit is one processed provider notification
type CallbackAudit struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	TenantID  string            `json:"tenant_id,omitempty"`
	Provider  string            `json:"provider"`
	OrderID   int64             `json:"order_id,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Result    string            `json:"result"`
	Error     string            `json:"error,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Form      map[string]string `json:"form,omitempty"`
}

// Logger handles OpenSearch indexing and search
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{client: client}
}

// LogSystemEvent indexes a system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, SystemLogIndex, uuid.NewString(), entry)
}

// LogCallbackAudit indexes a callback audit record
func (l *Logger) LogCallbackAudit(ctx context.Context, audit CallbackAudit) error {
	if !l.client.IsEnabled() {
		return nil
	}
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.Timestamp.IsZero() {
		audit.Timestamp = time.Now().UTC()
	}
	return l.index(ctx, CallbackAuditIndex, audit.ID, audit)
}

func (l *Logger) index(ctx context.Context, index, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

// SearchCallbackAudits returns the newest audit records of a tenant, optionally for one order
func (l *Logger) SearchCallbackAudits(ctx context.Context, tenantID string, orderID int64, limit int) ([]CallbackAudit, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	must := []map[string]any{
		{"term": map[string]any{"tenant_id": tenantID}},
	}
	if orderID > 0 {
		must = append(must, map[string]any{"term": map[string]any{"order_id": orderID}})
	}
	query := map[string]any{
		"query": map[string]any{"bool": map[string]any{"must": must}},
		"sort":  []map[string]any{{"timestamp": map[string]string{"order": "desc"}}},
		"size":  limit,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{CallbackAuditIndex},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source CallbackAudit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	audits := make([]CallbackAudit, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		audits[i] = hit.Source
	}
	return audits, nil
}

var sensitiveFormKeys = []string{
	"ipn_secret", "signaturevalue", "hmac", "password", "password1", "password2", "private_key", "key",
}

// SanitizeForm flattens a callback form and redacts secret-bearing fields
func SanitizeForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		value := strings.Join(v, ",")
		for _, s := range sensitiveFormKeys {
			if strings.EqualFold(k, s) {
				value = "***REDACTED***"
				break
			}
		}
		out[k] = value
	}
	return out
}
