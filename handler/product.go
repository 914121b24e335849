package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/response"
	"github.com/shopspring/decimal"
)

// ProductHandler serves the tenant's catalog
type ProductHandler struct {
	products ProductStore
	validate *validator.Validate
}

// NewProductHandler creates a new product handler
func NewProductHandler(products ProductStore, validate *validator.Validate) *ProductHandler {
	return &ProductHandler{products: products, validate: validate}
}

// CreateProductRequest is the body of POST /v1/products
type CreateProductRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description,omitempty" validate:"max=2000"`
	Price       decimal.Decimal `json:"price" validate:"money"`
}

// List returns the tenant's products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context(), middle.GetTenantIDFromContext(r.Context()))
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}
	response.Success(w, http.StatusOK, "Products", products)
}

// Create adds a product to the tenant's catalog
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	product, err := h.products.CreateProduct(r.Context(), catalog.Product{
		TenantID:    middle.GetTenantIDFromContext(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidProduct) {
			response.Error(w, http.StatusBadRequest, "Invalid product", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to create product", err)
		return
	}
	response.Success(w, http.StatusCreated, "Product created", product)
}

// Get returns a product of the tenant; other tenants' products are reported as missing
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid product id", err)
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if errors.Is(err, catalog.ErrProductNotFound) || (err == nil && product.TenantID != middle.GetTenantIDFromContext(r.Context())) {
		response.Error(w, http.StatusNotFound, "Product not found", nil)
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	response.Success(w, http.StatusOK, "Product", product)
}
