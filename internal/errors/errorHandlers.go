// File: appraisal_go_backend/internal/errors/errorHandlers.go

package errors

import (
	stderrors "errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeTooLarge            ErrorType = "REQUEST_TOO_LARGE"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

var exposeDetails atomic.Bool

func init() {
	exposeDetails.Store(true)
}

// SetExposeDetails controls whether the underlying error text is sent to the
// client in the "error" field of error responses.
func SetExposeDetails(expose bool) {
	exposeDetails.Store(expose)
}

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

// WithInternal attaches the underlying cause.
func (e *CustomError) WithInternal(err error) *CustomError {
	e.Internal = err
	return e
}

// newError creates a new CustomError
func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error(message string) *CustomError {
	if message == "" {
		message = "Unauthorized access"
	}
	return newError(ErrorTypeUnauthorized, message, http.StatusUnauthorized, nil)
}

// New403Error creates a new forbidden error
func New403Error() *CustomError {
	return newError(ErrorTypeForbidden, "Access forbidden", http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New413Error creates a new payload too large error
func New413Error(message string) *CustomError {
	return newError(ErrorTypeTooLarge, message, http.StatusRequestEntityTooLarge, nil)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "Server error", http.StatusInternalServerError, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
// of the form {"message": ..., "error": ...}.
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	var validationErrs validation.Errors
	switch {
	case stderrors.As(err, &customErr):
	case stderrors.As(err, &validationErrs):
		customErr = New400Error("Validation failed").WithInternal(validationErrs)
	default:
		customErr = New500Error(err)
	}

	// Log internal server errors
	if customErr.StatusCode >= http.StatusInternalServerError {
		logger := zerolog.Ctx(c.Request.Context())
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}
		logger.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	body := gin.H{"message": customErr.Message}
	// Client errors always carry their detail; server errors only when enabled.
	if customErr.Internal != nil && (customErr.StatusCode < http.StatusInternalServerError || exposeDetails.Load()) {
		body["error"] = customErr.Internal.Error()
	}
	c.AbortWithStatusJSON(customErr.StatusCode, body)
}
