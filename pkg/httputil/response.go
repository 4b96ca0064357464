package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
	"github.com/ucplabs/ucp-bridge/pkg/logger"
	"github.com/ucplabs/ucp-bridge/pkg/validator"
)

// ErrorResponse is the standard JSON error body. Checkout-session success
// payloads are written bare (not wrapped in an envelope) to match the
// protocol's external schema.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// Write sends the error body with the given status.
func (e ErrorResponse) Write(w http.ResponseWriter, status int) {
	WriteJSON(w, status, map[string]ErrorResponse{"error": e})
}

// WriteError maps err to the protocol error shape. Typed AppErrors keep their
// code and status; anything else degrades to a 500 with a generic body so
// backend internals never leak to the caller. It prefers the request-scoped
// logger from context over the fallback logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID}.Write(w, appErr.Status)
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	if errors.Is(err, apperrors.ErrInvalidInput) {
		code = "INVALID_INPUT"
		message = err.Error()
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	ErrorResponse{Code: code, Message: message, RequestID: requestID}.Write(w, status)
}

// WriteValidationError writes a field-level validation error response.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}.Write(w, http.StatusBadRequest)
		return
	}

	ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}.Write(w, http.StatusBadRequest)
}
