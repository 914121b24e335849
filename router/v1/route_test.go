package v1

import (
	"net/http"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storepay/handler"
	"github.com/mstgnz/storepay/infra/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	v := validate.New()
	h := Handlers{
		Payment: handler.NewPaymentHandler(nil, nil, v),
		Config:  handler.NewConfigHandler(nil, nil, v),
		Order:   handler.NewOrderHandler(nil, nil),
		Product: handler.NewProductHandler(nil, v),
		Audit:   handler.NewAuditHandler(nil),
	}

	r := chi.NewRouter()
	require.NotPanics(t, func() { Routes(r, h) })

	var got []string
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(got)

	want := []string{
		"DELETE /payment/configs/{configID}",
		"GET /orders/",
		"GET /orders/{orderID}",
		"GET /payment/callbacks",
		"GET /payment/configs/",
		"GET /payment/providers",
		"GET /products/",
		"GET /products/{productID}",
		"POST /payment/configs/",
		"POST /payment/create_payment",
		"POST /products/",
		"PUT /payment/configs/{configID}",
	}
	assert.Equal(t, want, got)
}
