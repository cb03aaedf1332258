package common

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	// Soft errors are reported but do not fail validation.
	Soft bool
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Soft validates a field and collects any errors as non-blocking.
func (v *Validator) Soft(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			err.Soft = true
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are blocking validation errors
func (v *Validator) HasErrors() bool {
	for _, err := range v.errors {
		if !err.Soft {
			return true
		}
	}
	return false
}

// Errors returns all validation errors, blocking and soft, in check order
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error for the blocking errors
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError("VALIDATION_ERROR", v.ErrorMessage(), ErrValidation)
}

// ErrorMessage returns the blocking error messages as one string
func (v *Validator) ErrorMessage() string {
	var messages []string
	for _, err := range v.errors {
		if !err.Soft {
			messages = append(messages, err.Error())
		}
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// stringValue unwraps string and *string values. ok is false for nil or other types.
func stringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &ValidationError{Field: fieldName, Value: nil, Message: "is required"}
		}
	case *int:
		if v == nil {
			return &ValidationError{Field: fieldName, Value: nil, Message: "is required"}
		}
	}
	return nil
}

// MaxLength rejects strings longer than max runes. Absent values pass.
func MaxLength(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := stringValue(value)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(str) > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   str,
				Message: fmt.Sprintf("must be at most %d characters", max),
			}
		}
		return nil
	}
}

// Matches rejects strings not matching re. Absent or empty values pass.
func Matches(re *regexp.Regexp, description string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := stringValue(value)
		if !ok || str == "" {
			return nil
		}
		if !re.MatchString(str) {
			return &ValidationError{Field: fieldName, Value: str, Message: "must be " + description}
		}
		return nil
	}
}

// MinDigits rejects strings with fewer than min decimal digits. Absent values pass.
func MinDigits(min int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := stringValue(value)
		if !ok || str == "" {
			return nil
		}
		n := 0
		for _, r := range str {
			if r >= '0' && r <= '9' {
				n++
			}
		}
		if n < min {
			return &ValidationError{
				Field:   fieldName,
				Value:   str,
				Message: fmt.Sprintf("must contain at least %d digits", min),
			}
		}
		return nil
	}
}

// NonNegative rejects negative integers. Nil pointers pass.
func NonNegative(fieldName string, value interface{}) *ValidationError {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case *int:
		if v == nil {
			return nil
		}
		n = *v
	default:
		return nil
	}
	if n < 0 {
		return &ValidationError{Field: fieldName, Value: n, Message: "must not be negative"}
	}
	return nil
}
