package opensearch

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DisabledIsNoop(t *testing.T) {
	client, err := NewClient(context.Background(), Options{URL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	l := NewLogger(client)

	assert.NoError(t, l.LogSystemEvent(context.Background(), map[string]any{"message": "x"}))
	assert.NoError(t, l.LogCallbackAudit(context.Background(), CallbackAudit{Provider: "robokassa"}))

	_, err = l.SearchCallbackAudits(context.Background(), "1", 0, 10)
	assert.Error(t, err)
}

func TestLogger_LogCallbackAudit(t *testing.T) {
	fc := newFakeCluster(t, SystemLogIndex, CallbackAuditIndex)
	client, err := NewClient(context.Background(), Options{URL: fc.server.URL, Enabled: true})
	require.NoError(t, err)

	err = NewLogger(client).LogCallbackAudit(context.Background(), CallbackAudit{
		TenantID: "1",
		Provider: "coinpayments",
		OrderID:  42,
		Result:   "applied",
	})
	require.NoError(t, err)

	var indexed bool
	for _, r := range fc.seen() {
		if strings.HasPrefix(r, "PUT /"+CallbackAuditIndex+"/_doc/") {
			indexed = true
		}
	}
	assert.True(t, indexed, "audit document was not indexed: %v", fc.seen())
}

func TestLogger_SearchCallbackAudits(t *testing.T) {
	fc := newFakeCluster(t, SystemLogIndex, CallbackAuditIndex)
	fc.search = `{"hits":{"hits":[
		{"_source":{"id":"a","provider":"robokassa","order_id":7,"result":"applied","tenant_id":"1"}},
		{"_source":{"id":"b","provider":"robokassa","order_id":7,"result":"noop","tenant_id":"1"}}
	]}}`
	client, err := NewClient(context.Background(), Options{URL: fc.server.URL, Enabled: true})
	require.NoError(t, err)

	audits, err := NewLogger(client).SearchCallbackAudits(context.Background(), "1", 7, 0)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "applied", audits[0].Result)
	assert.Equal(t, int64(7), audits[1].OrderID)
}

func TestSanitizeForm(t *testing.T) {
	form := url.Values{
		"OutSum":         {"100.00"},
		"InvId":          {"42"},
		"SignatureValue": {"abc"},
		"ipn_secret":     {"s3cret"},
		"status":         {"100"},
	}

	out := SanitizeForm(form)
	assert.Equal(t, "100.00", out["OutSum"])
	assert.Equal(t, "42", out["InvId"])
	assert.Equal(t, "***REDACTED***", out["SignatureValue"])
	assert.Equal(t, "***REDACTED***", out["ipn_secret"])
	assert.Equal(t, "100", out["status"])
}
