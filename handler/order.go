package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/response"
	"github.com/mstgnz/storepay/ledger"
	"github.com/shopspring/decimal"
)

// OrderReader is the read side of the ledger
type OrderReader interface {
	GetForTenant(ctx context.Context, tenantID, id int64) (*ledger.Order, error)
	ListByTenant(ctx context.Context, tenantID int64, offset, limit int) ([]ledger.Order, error)
}

// ProductStore reads and creates catalog products
type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
	ListProducts(ctx context.Context, tenantID int64) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, p catalog.Product) (*catalog.Product, error)
}

// OrderHandler serves the tenant's orders
type OrderHandler struct {
	orders   OrderReader
	products ProductStore
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderReader, products ProductStore) *OrderHandler {
	return &OrderHandler{orders: orders, products: products}
}

// OrderDetail is an order with the product it was created for
type OrderDetail struct {
	ledger.Order
	ProductTitle string           `json:"product_title,omitempty"`
	ProductPrice *decimal.Decimal `json:"product_price,omitempty"`
}

// List returns the tenant's orders, newest first, paged by skip and limit
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	orders, err := h.orders.ListByTenant(r.Context(), tenantID, skip, limit)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}
	response.Success(w, http.StatusOK, "Orders", orders)
}

// Get returns one order with its product
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	id, err := idParam(r, "orderID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid order id", err)
		return
	}

	order, err := h.orders.GetForTenant(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, ledger.ErrOrderNotFound) {
			response.Error(w, http.StatusNotFound, "Order not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}

	detail := OrderDetail{Order: *order}
	if p, err := h.products.GetProduct(r.Context(), order.ProductID); err == nil && p.TenantID == tenantID {
		detail.ProductTitle = p.Title
		detail.ProductPrice = &p.Price
	}
	response.Success(w, http.StatusOK, "Order", detail)
}
