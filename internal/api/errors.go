// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/logvision/backend/internal/pattern"
	"github.com/logvision/backend/internal/session"
	"github.com/logvision/backend/internal/storage"
	"github.com/logvision/backend/internal/view"
	"github.com/rs/zerolog/log"
)

// ShowErrorDetails includes the cause of unexpected errors in responses.
var ShowErrorDetails = true

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-" msgpack:"-"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewInvalidPatternError creates a 400 error for patterns that do not compile
// or violate set rules.
func NewInvalidPatternError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_PATTERN",
		Message: "invalid pattern",
		Details: cause.Error(),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// fromDomainError maps package sentinel errors to API errors. It returns
// nil for errors it does not know.
func fromDomainError(err error) *APIError {
	var invalid *pattern.InvalidPatternError
	var validation *pattern.ValidationError
	switch {
	case errors.As(err, &invalid), errors.As(err, &validation):
		return NewInvalidPatternError(err)
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, view.ErrUnknownPanel), errors.Is(err, view.ErrUnknownSignal), errors.Is(err, view.ErrUnknownSegment):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, session.ErrNotReady), errors.Is(err, view.ErrNoSeries), errors.Is(err, view.ErrLastPanel):
		return NewConflictError(err.Error())
	case errors.Is(err, view.ErrInvalidRange):
		return NewBadRequestError(err.Error(), nil)
	}
	return nil
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		if apiErr = fromDomainError(err); apiErr != nil {
			break
		}
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		if ShowErrorDetails {
			apiErr.Details = err.Error()
		}
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}

	if err := c.JSON(apiErr.Status, apiErr); err != nil {
		log.Warn().Err(err).Msg("writing error response failed")
	}
}
