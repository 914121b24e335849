package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ValidateConfigFields validates configuration against provided field definitions
func ValidateConfigFields(name Name, config map[string]string, fields []ConfigField) error {
	for _, field := range fields {
		value, exists := config[field.Key]
		if !exists || strings.TrimSpace(value) == "" {
			if field.Required {
				return fmt.Errorf("%w: %s: required field '%s' is missing", ErrConfiguration, name, field.Key)
			}
			continue
		}

		if err := validateFieldType(name, field, value); err != nil {
			return err
		}
		if err := validateFieldPattern(name, field, value); err != nil {
			return err
		}
		if err := validateFieldLength(name, field, value); err != nil {
			return err
		}
	}
	return nil
}

func validateFieldType(name Name, field ConfigField, value string) error {
	switch field.Type {
	case "number":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%w: %s: field '%s' must be a number", ErrConfiguration, name, field.Key)
		}
	case "url":
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %s: field '%s' must be an absolute URL", ErrConfiguration, name, field.Key)
		}
	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s: field '%s' must be 'true' or 'false'", ErrConfiguration, name, field.Key)
		}
	}
	return nil
}

func validateFieldPattern(name Name, field ConfigField, value string) error {
	if field.Pattern == "" {
		return nil
	}

	matched, err := regexp.MatchString(field.Pattern, value)
	if err != nil {
		return fmt.Errorf("%w: %s: invalid pattern for field '%s': %v", ErrConfiguration, name, field.Key, err)
	}
	if !matched {
		return fmt.Errorf("%w: %s: field '%s' does not match required pattern", ErrConfiguration, name, field.Key)
	}
	return nil
}

func validateFieldLength(name Name, field ConfigField, value string) error {
	if field.MinLength > 0 && len(value) < field.MinLength {
		return fmt.Errorf("%w: %s: field '%s' must be at least %d characters", ErrConfiguration, name, field.Key, field.MinLength)
	}
	if field.MaxLength > 0 && len(value) > field.MaxLength {
		return fmt.Errorf("%w: %s: field '%s' must not exceed %d characters", ErrConfiguration, name, field.Key, field.MaxLength)
	}
	return nil
}
