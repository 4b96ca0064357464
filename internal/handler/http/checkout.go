// Package http exposes the bridge's REST and JSON-RPC surfaces over chi.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ucplabs/ucp-bridge/internal/domain"
	"github.com/ucplabs/ucp-bridge/internal/service"
	"github.com/ucplabs/ucp-bridge/pkg/httputil"
	"github.com/ucplabs/ucp-bridge/pkg/validator"
)

// maxBodySize caps request bodies at 1MB.
const maxBodySize = 1 << 20

// CheckoutHandler handles the checkout session endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ItemRequest is a single requested cart line.
type ItemRequest struct {
	ID       string `json:"id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreateCheckoutRequest is the JSON request body for creating a session.
type CreateCheckoutRequest struct {
	Items []ItemRequest `json:"items" validate:"omitempty,dive"`
}

// UpdateCheckoutRequest is the JSON request body for updating a session. Each
// field is applied only when present; items and discount codes replace
// wholesale, the shipping address merges.
type UpdateCheckoutRequest struct {
	Items           *[]ItemRequest       `json:"items" validate:"omitempty,dive"`
	DiscountCodes   *[]string            `json:"discount_codes"`
	ShippingAddress *domain.AddressPatch `json:"shipping_address"`
}

// --- Handlers ---

// Create handles POST /ucp/v1/checkout. Returns 201 with the new session and
// its token.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	req := CreateCheckoutRequest{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body"}.Write(w, http.StatusBadRequest)
			return
		}
		if err := validator.Validate(req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	}

	payload, err := h.service.Create(r.Context(), &service.CreateInput{Items: itemInputs(req.Items)})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, payload)
}

// Update handles POST /ucp/v1/checkout/{token}.
func (h *CheckoutHandler) Update(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req UpdateCheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := &service.UpdateInput{
		DiscountCodes:   req.DiscountCodes,
		ShippingAddress: req.ShippingAddress,
	}
	if req.Items != nil {
		items := itemInputs(*req.Items)
		input.Items = &items
	}

	payload, err := h.service.Update(r.Context(), tok, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, payload)
}

// Complete handles POST /ucp/v1/checkout/{token}/complete. Returns the
// escalation payload with the out-of-band payment URL.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	payload, err := h.service.Complete(r.Context(), tok)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, payload)
}

func itemInputs(items []ItemRequest) []service.ItemInput {
	out := make([]service.ItemInput, len(items))
	for i, it := range items {
		out[i] = service.ItemInput{ID: it.ID, Quantity: it.Quantity}
	}
	return out
}
