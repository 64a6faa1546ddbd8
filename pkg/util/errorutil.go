package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes owned by the scheduling core.
const (
	CodeNoCapacity         = "NO_CAPACITY"
	CodeNoCatalog          = "NO_CATALOG"
	CodeNoActiveTechnician = "NO_ACTIVE_TECHNICIAN"
	CodeDuplicateFollowUp  = "DUPLICATE_FOLLOW_UP"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewNoCapacity signals that no compliant slot exists within the search
// horizon. Recoverable: the intake caller retries or escalates to manual
// scheduling.
func NewNoCapacity(details map[string]any) error {
	return NewDomainError(CodeNoCapacity, "no appointment capacity within search horizon", http.StatusConflict, details)
}

// NewNoCatalog signals an empty time-block catalog. Operator configuration
// error, fatal to the scheduling pass only.
func NewNoCatalog() error {
	return NewDomainError(CodeNoCatalog, "time block catalog is not configured", http.StatusInternalServerError, nil)
}

// NewDuplicateFollowUp guards the at-most-one-active-record invariant.
// Treated as an assertion failure, not a recoverable condition.
func NewDuplicateFollowUp(caseID string) error {
	return NewDomainError(CodeDuplicateFollowUp, "case already has an active follow-up", http.StatusInternalServerError,
		map[string]any{"case_id": caseID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
