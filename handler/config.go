package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/response"
	"github.com/mstgnz/storepay/provider"
)

// ConfigStore manages a tenant's payment provider configs
type ConfigStore interface {
	Create(ctx context.Context, tenantID int64, in config.PaymentConfigInput) (*config.PaymentConfig, error)
	List(ctx context.Context, tenantID int64) ([]config.PaymentConfig, error)
	Update(ctx context.Context, tenantID, id int64, patch config.PaymentConfigPatch) (*config.PaymentConfig, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

// ConfigHandler handles payment config CRUD
type ConfigHandler struct {
	store    ConfigStore
	registry *provider.Registry
	validate *validator.Validate
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(store ConfigStore, registry *provider.Registry, validate *validator.Validate) *ConfigHandler {
	return &ConfigHandler{store: store, registry: registry, validate: validate}
}

// CreateConfigRequest is the body of POST /v1/payment/configs
type CreateConfigRequest struct {
	ProviderName string `json:"provider_name" validate:"required,provider_name"`
	APIKey       string `json:"api_key" validate:"required"`
	ExtraConfig  string `json:"extra_config,omitempty"`
}

// UpdateConfigRequest is the body of PUT /v1/payment/configs/{configID}
type UpdateConfigRequest struct {
	APIKey      *string `json:"api_key,omitempty" validate:"omitempty,min=1"`
	ExtraConfig *string `json:"extra_config,omitempty"`
}

// ConfigView is a payment config as returned by the API; secrets in
// extra_config are not echoed back
type ConfigView struct {
	ID        int64         `json:"id"`
	Provider  provider.Name `json:"provider_name"`
	APIKey    string        `json:"api_key"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func newConfigView(c *config.PaymentConfig) ConfigView {
	return ConfigView{
		ID:        c.ID,
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func configError(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrAlreadyExists):
		return http.StatusConflict, "Provider is already configured"
	case errors.Is(err, config.ErrNotFound):
		return http.StatusNotFound, "Payment config not found"
	case errors.Is(err, provider.ErrUnsupportedProvider):
		return http.StatusBadRequest, "Unsupported payment provider"
	case errors.Is(err, provider.ErrConfiguration):
		return http.StatusBadRequest, "Invalid provider configuration"
	default:
		return http.StatusInternalServerError, "Payment config operation failed"
	}
}

// Providers lists the supported providers and the fields each one needs
func (h *ConfigHandler) Providers(w http.ResponseWriter, r *http.Request) {
	out := make(map[provider.Name][]provider.ConfigField)
	for _, name := range h.registry.Names() {
		adapter, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		out[name] = adapter.RequiredConfig()
	}
	response.Success(w, http.StatusOK, "Supported providers", out)
}

// List returns the tenant's payment configs
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	configs, err := h.store.List(r.Context(), tenantID)
	if err != nil {
		status, msg := configError(err)
		response.Error(w, status, msg, err)
		return
	}

	views := make([]ConfigView, len(configs))
	for i := range configs {
		views[i] = newConfigView(&configs[i])
	}
	response.Success(w, http.StatusOK, "Payment configs", views)
}

// Create adds a provider config for the tenant
func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())

	var req CreateConfigRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	created, err := h.store.Create(r.Context(), tenantID, config.PaymentConfigInput{
		Provider:    req.ProviderName,
		APIKey:      req.APIKey,
		ExtraConfig: req.ExtraConfig,
	})
	if err != nil {
		status, msg := configError(err)
		response.Error(w, status, msg, err)
		return
	}
	response.Success(w, http.StatusCreated, "Payment config created", newConfigView(created))
}

// Update changes the api key or extra config of a tenant's config
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	id, err := idParam(r, "configID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid config id", err)
		return
	}

	var req UpdateConfigRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	updated, err := h.store.Update(r.Context(), tenantID, id, config.PaymentConfigPatch{
		APIKey:      req.APIKey,
		ExtraConfig: req.ExtraConfig,
	})
	if err != nil {
		status, msg := configError(err)
		response.Error(w, status, msg, err)
		return
	}
	response.Success(w, http.StatusOK, "Payment config updated", newConfigView(updated))
}

// Delete removes a tenant's config
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	id, err := idParam(r, "configID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid config id", err)
		return
	}

	if err := h.store.Delete(r.Context(), tenantID, id); err != nil {
		status, msg := configError(err)
		response.Error(w, status, msg, err)
		return
	}
	response.Success(w, http.StatusOK, "Payment config deleted", nil)
}
