package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classification with errors.Is. Constructors below attach
// the protocol code and HTTP status callers need for the wire response.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidToken       = errors.New("invalid token format")
	ErrSessionNotFound    = errors.New("session not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrCouponRejected     = errors.New("coupon rejected")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrAlreadyCompleted   = errors.New("checkout already completed")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrOrderCreation      = errors.New("order creation failed")
	ErrInternal           = errors.New("internal error")
)

// AppError is a structured application error carrying a machine-readable code,
// a human-readable message, and an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidTokenFormat creates a 400 error for a token that does not decode.
func InvalidTokenFormat(message string) *AppError {
	return &AppError{
		Code:    "INVALID_TOKEN_FORMAT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidToken,
	}
}

// SessionNotFound creates a 404 error for a token whose backend state is gone.
func SessionNotFound(token string) *AppError {
	return &AppError{
		Code:    "SESSION_NOT_FOUND",
		Message: fmt.Sprintf("no checkout session found for token %q; it may have expired", token),
		Status:  http.StatusNotFound,
		Err:     ErrSessionNotFound,
	}
}

// ProductNotFound creates a 404 error for an unknown product id.
func ProductNotFound(id string) *AppError {
	return &AppError{
		Code:    "PRODUCT_NOT_FOUND",
		Message: fmt.Sprintf("product with id %s not found", id),
		Status:  http.StatusNotFound,
		Err:     ErrProductNotFound,
	}
}

// CouponRejected creates a 422 error for rejected discount codes.
func CouponRejected(message string) *AppError {
	return &AppError{
		Code:    "COUPON_REJECTED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrCouponRejected,
	}
}

// EmptyCart creates a 409 error for completing a cart with no items.
func EmptyCart() *AppError {
	return &AppError{
		Code:    "EMPTY_CART",
		Message: "cannot complete checkout: the cart has no items",
		Status:  http.StatusConflict,
		Err:     ErrEmptyCart,
	}
}

// AlreadyCompleted creates a 409 error for mutating or re-completing a session
// that has already been converted to an order.
func AlreadyCompleted() *AppError {
	return &AppError{
		Code:    "ALREADY_COMPLETED",
		Message: "checkout session has already been converted to an order",
		Status:  http.StatusConflict,
		Err:     ErrAlreadyCompleted,
	}
}

// BackendUnavailable creates a 502 error for commerce engine failures.
func BackendUnavailable(err error) *AppError {
	return &AppError{
		Code:    "BACKEND_UNAVAILABLE",
		Message: "the commerce engine is unavailable",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrBackendUnavailable, err),
	}
}

// OrderCreationFailed creates a 502 error for a checkout the engine accepted
// but could not convert into an order.
func OrderCreationFailed(message string) *AppError {
	return &AppError{
		Code:    "ORDER_CREATION_FAILED",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrOrderCreation,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// NotFound creates a generic 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, ErrCouponRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrOrderCreation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
