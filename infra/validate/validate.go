// Package validate builds the request validator shared by all handlers.
package validate

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var providerNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

// New returns a validator with the custom storepay tags registered:
//
//	money          non-negative amount with at most two fractional digits
//	provider_name  provider identifier such as "robokassa", case-insensitive
func New() *validator.Validate {
	v := validator.New()

	// decimals are validated through their string form
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("money", money)
	_ = v.RegisterValidation("provider_name", providerName)
	return v
}

func money(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Exponent() >= -2
}

func providerName(fl validator.FieldLevel) bool {
	return providerNamePattern.MatchString(strings.ToLower(strings.TrimSpace(fl.Field().String())))
}
