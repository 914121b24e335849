package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/handler"
	"github.com/mstgnz/storepay/infra/auth"
	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/conn"
	"github.com/mstgnz/storepay/infra/metrics"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/validate"
	"github.com/mstgnz/storepay/ledger"
	"github.com/mstgnz/storepay/payment"
	"github.com/mstgnz/storepay/provider"
	"github.com/mstgnz/storepay/provider/coinpayments"
	"github.com/mstgnz/storepay/provider/robokassa"
	v1 "github.com/mstgnz/storepay/router/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv    *httptest.Server
	orders *ledger.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	db, err := conn.Open(ctx, conn.DriverSQLite, filepath.Join(t.TempDir(), "router.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	registry := provider.NewRegistry(
		robokassa.New(robokassa.Options{TestMode: true}),
		coinpayments.New(coinpayments.Options{APIURL: "http://127.0.0.1:1", Timeout: time.Second}),
	)
	products := catalog.NewStore(db)
	orders := ledger.NewStore(db)
	configs := config.NewPaymentConfigStore(db, registry, 16, time.Minute)
	m := metrics.New()
	v := validate.New()

	jwtService := auth.NewJWTService("router-test-secret", time.Hour)
	admins := auth.NewAdminService(db, jwtService, products)

	intents := payment.NewIntentService(products, orders, configs, registry, m)
	recon := payment.NewReconciler(orders, configs, registry, nil, nil, m)

	h := Handlers{
		Handlers: v1.Handlers{
			Payment: handler.NewPaymentHandler(intents, recon, v),
			Config:  handler.NewConfigHandler(configs, registry, v),
			Order:   handler.NewOrderHandler(orders, products),
			Product: handler.NewProductHandler(products, v),
			Audit:   handler.NewAuditHandler(nil),
		},
		Auth:   handler.NewAuthHandler(admins, v),
		Health: handler.NewHealthHandler(db, registry, false, "test"),
	}

	srv := httptest.NewServer(New(h, Options{
		Tokens:      jwtService,
		RateLimiter: middle.NewRateLimiter(1000),
		Metrics:     m,
	}))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, orders: orders}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := http.PostForm(s.srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/auth/register", "", `{"tenant_name":"acme","username":"owner","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/auth/login", "", `{"username":"owner","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	return data["token"].(string)
}

func dataID(t *testing.T, body map[string]any, key string) int64 {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return int64(data[key].(float64))
}

func TestRouter_PurchaseFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	status, body := s.do(t, http.MethodPost, "/v1/products", token, `{"title":"Premium","price":"250.00"}`)
	require.Equal(t, http.StatusCreated, status)
	productID := dataID(t, body, "id")

	status, _ = s.do(t, http.MethodPost, "/v1/payment/configs", token,
		`{"provider_name":"robokassa","api_key":"shop","extra_config":"{\"password1\":\"one\",\"password2\":\"two\"}"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = s.do(t, http.MethodPost, "/v1/payment/configs", token,
		`{"provider_name":"robokassa","api_key":"shop","extra_config":"{\"password1\":\"one\",\"password2\":\"two\"}"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = s.do(t, http.MethodPost, "/v1/payment/create_payment", token, fmt.Sprintf(`{"product_id":%d,"provider_name":"robokassa"}`, productID))
	require.Equal(t, http.StatusOK, status)
	orderID := dataID(t, body, "order_id")
	paymentURL := body["data"].(map[string]any)["payment_url"].(string)
	assert.Contains(t, paymentURL, "InvId="+strconv.FormatInt(orderID, 10))

	id := strconv.FormatInt(orderID, 10)
	form := url.Values{
		"InvId":          {id},
		"OutSum":         {"250.00"},
		"SignatureValue": {robokassa.CallbackSignature("250.00", id, "two")},
	}
	code, reply := s.postForm(t, "/payment/robokassa_callback/", form)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"detail":"OK"}`, reply)

	// a redelivered callback is acknowledged without changing anything
	code, _ = s.postForm(t, "/payment/robokassa_callback/", form)
	assert.Equal(t, http.StatusOK, code)

	status, body = s.do(t, http.MethodGet, "/v1/orders/"+id, token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", body["data"].(map[string]any)["status"])

	order, err := s.orders.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, order.Status)

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `storepay_callbacks_total{provider="robokassa",result="applied"} 1`)
	assert.Contains(t, string(raw), `storepay_callbacks_total{provider="robokassa",result="noop"} 1`)
}

func TestRouter_CallbackRejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		form   url.Values
		want   int
		detail string
	}{
		{
			name:   "unknown order",
			path:   "/payment/robokassa_callback/",
			form:   url.Values{"InvId": {"999"}, "OutSum": {"1.00"}, "SignatureValue": {"x"}},
			want:   http.StatusNotFound,
			detail: "Order not found",
		},
		{
			name:   "missing fields",
			path:   "/payment/robokassa_callback/",
			form:   url.Values{"OutSum": {"1.00"}},
			want:   http.StatusBadRequest,
			detail: "Missing or invalid fields",
		},
		{
			name:   "coinpayments without order",
			path:   "/payment/coinpayments_callback/",
			form:   url.Values{"status": {"100"}},
			want:   http.StatusBadRequest,
			detail: "Missing or invalid fields",
		},
		{
			name:   "coinpayments unknown order without hmac mode",
			path:   "/payment/coinpayments_callback/",
			form:   url.Values{"ipn_mode": {"httpauth"}, "custom": {"999"}, "status": {"100"}},
			want:   http.StatusBadRequest,
			detail: "Missing or invalid fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, reply := s.postForm(t, tt.path, tt.form)
			assert.Equal(t, tt.want, code)
			assert.JSONEq(t, fmt.Sprintf(`{"detail":%q}`, tt.detail), reply)
		})
	}
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"orders without token", http.MethodGet, "/v1/orders", "", http.StatusUnauthorized},
		{"create payment without token", http.MethodPost, "/v1/payment/create_payment", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/products", "not-a-jwt", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"callback wrong method", http.MethodGet, "/payment/robokassa_callback/", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ""
			if tt.method == http.MethodPost {
				body = `{}`
			}
			status, _ := s.do(t, tt.method, tt.path, tt.token, body)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestRouter_RegistrationClosesAfterFirstAdmin(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	status, _ := s.do(t, http.MethodPost, "/auth/register", "", `{"tenant_name":"globex","username":"intruder","password":"hunter22"}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodPost, "/auth/login", "", `{"username":"owner","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_TenantIsolation(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	status, _ := s.do(t, http.MethodGet, "/v1/orders/12345", token, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/v1/payment/create_payment", token, `{"product_id":12345}`)
	assert.Equal(t, http.StatusNotFound, status)
}
