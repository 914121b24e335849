package provider

import "errors"

var (
	// ErrConfiguration means the tenant's provider credentials are missing or malformed
	ErrConfiguration = errors.New("provider configuration error")
	// ErrSignature means a callback failed authentication
	ErrSignature = errors.New("invalid signature")
	// ErrProviderUnavailable means the provider could not be reached or answered garbage
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrProviderRejected means the provider explicitly refused the request
	ErrProviderRejected = errors.New("payment provider rejected the request")
	// ErrUnsupportedProvider means the provider name is not in the registry
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	// ErrBadRequest means a notification lacks required fields
	ErrBadRequest = errors.New("bad request")
)
