package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap attaches a cause to a template error without mutating the template.
func Wrap(template *Error, err error) *Error {
	return &Error{
		Code:    template.Code,
		Message: template.Message,
		Err:     err,
	}
}

// WithMessage returns a copy of the template error with a specific message.
func WithMessage(template *Error, message string) *Error {
	return &Error{
		Code:    template.Code,
		Message: message,
		Err:     template.Err,
	}
}

// Common error types
var (
	ErrBadRequest       = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized     = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden        = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound         = New(http.StatusNotFound, "Not found", nil)
	ErrConflict         = New(http.StatusConflict, "Conflict", nil)
	ErrInternalServer   = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrGatewayUpstream  = New(http.StatusBadGateway, "Payment gateway error", nil)
)

// Validation error types
var (
	ErrValidation   = New(http.StatusBadRequest, "Validation error", nil)
	ErrInvalidInput = New(http.StatusBadRequest, "Invalid input", nil)
)

// Authentication error types
var (
	ErrInvalidCredentials = New(http.StatusUnauthorized, "Invalid credentials", nil)
	ErrInvalidToken       = New(http.StatusUnauthorized, "Invalid token", nil)
	ErrInvalidSignature   = New(http.StatusBadRequest, "Invalid webhook signature", nil)
)

// Business logic error types
var (
	ErrInsufficientStock  = New(http.StatusBadRequest, "Insufficient stock", nil)
	ErrPaymentFailed      = New(http.StatusBadRequest, "Payment failed", nil)
	ErrPaymentNotStarted  = New(http.StatusBadGateway, "Could not start payment", nil)
	ErrEmailTaken         = New(http.StatusBadRequest, "Email already registered. Please login.", nil)
	ErrTransactionMissing = New(http.StatusNotFound, "Transaction not found", nil)
	ErrOrderMissing       = New(http.StatusNotFound, "Order not found", nil)
)

// HandleError writes an application error as a JSON response and aborts.
func HandleError(c *gin.Context, err error) {
	var appErr *Error
	if e, ok := err.(*Error); ok {
		appErr = e
	} else {
		appErr = Wrap(ErrInternalServer, err)
	}
	c.AbortWithStatusJSON(appErr.Code, gin.H{"success": false, "message": appErr.Message})
}

// ErrorMiddleware maps errors pushed onto the gin context to JSON responses.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			HandleError(c, c.Errors.Last().Err)
		}
	}
}
