package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/khony/adzb/internal/validate"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

const (
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeForbidden            = "FORBIDDEN"
	CodeValidation           = "VALIDATION_ERROR"
	CodeDuplicate            = "DUPLICATE"
	CodeNotFound             = "NOT_FOUND"
	CodeOrganizationNotFound = "ORGANIZATION_NOT_FOUND"
	CodeUpstream             = "UPSTREAM_ERROR"
	CodeNoValidRecipients    = "NO_VALID_RECIPIENTS"
	CodeUnavailable          = "SERVICE_UNAVAILABLE"
)

func Unauthenticated(message string) *DomainError {
	if message == "" {
		message = "Authentication required"
	}
	return domainError(http.StatusUnauthorized, CodeUnauthenticated, message, nil)
}

func Forbidden(message string) *DomainError {
	if message == "" {
		message = "Forbidden"
	}
	return domainError(http.StatusForbidden, CodeForbidden, message, nil)
}

// ValidationError reports the first violated field.
func ValidationError(field, rule, message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, CodeValidation, message, map[string]string{
		"field": field,
		"rule":  rule,
	})
}

func Duplicate(message string) *DomainError {
	return domainError(http.StatusConflict, CodeDuplicate, message, nil)
}

func NotFound(message string) *DomainError {
	if message == "" {
		message = "Not found"
	}
	return domainError(http.StatusNotFound, CodeNotFound, message, nil)
}

// OrganizationNotFound is returned both for unknown slugs and for
// organizations the caller does not belong to.
func OrganizationNotFound() *DomainError {
	return domainError(http.StatusNotFound, CodeOrganizationNotFound, "Organization not found", nil)
}

func Upstream(message string) *DomainError {
	return domainError(http.StatusBadGateway, CodeUpstream, message, nil)
}

func NoValidRecipients() *DomainError {
	return domainError(http.StatusUnprocessableEntity, CodeNoValidRecipients, "No valid recipients", nil)
}

func Unavailable(message string) *DomainError {
	return domainError(http.StatusServiceUnavailable, CodeUnavailable, message, nil)
}

// invalid converts a validate failure into a ValidationError. Other errors
// pass through.
func invalid(err error) error {
	var fieldErr *validate.FieldError
	if errors.As(err, &fieldErr) {
		return ValidationError(fieldErr.Field, fieldErr.Rule, fieldErr.Message)
	}
	return err
}
