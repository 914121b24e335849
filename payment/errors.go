package payment

import "errors"

var (
	ErrForbidden           = errors.New("product belongs to another tenant")
	ErrNoPaymentConfigured = errors.New("no payment provider configured")
)
