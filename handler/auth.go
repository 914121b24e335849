package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/storepay/infra/auth"
	"github.com/mstgnz/storepay/infra/response"
)

// AdminAuthenticator logs admins in and registers the first one
type AdminAuthenticator interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Admin, error)
}

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	admins   AdminAuthenticator
	validate *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(admins AdminAuthenticator, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{admins: admins, validate: validate}
}

// Login handles admin login requests
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	resp, err := h.admins.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Error(w, http.StatusUnauthorized, "Invalid username or password", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Login failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Login successful", resp)
}

// Register creates the first tenant and admin of a fresh installation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	admin, err := h.admins.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRegistrationClosed):
			response.Error(w, http.StatusForbidden, "Registration is closed", nil)
		case errors.Is(err, auth.ErrAdminExists):
			response.Error(w, http.StatusConflict, "Username is taken", nil)
		default:
			response.Error(w, http.StatusInternalServerError, "Registration failed", err)
		}
		return
	}

	response.Success(w, http.StatusCreated, "Registration successful", admin)
}
