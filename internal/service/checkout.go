// Package service implements the checkout orchestrator: the state machine
// behind create, update and complete. It owns token handling, per-token
// mutation serialization and the translation from engine state to the
// external schema. It performs no retries of its own; cart mutation is not
// safely idempotent to replay blindly.
package service

import (
	"context"
	"log/slog"

	"github.com/ucplabs/ucp-bridge/internal/domain"
	"github.com/ucplabs/ucp-bridge/internal/engine"
	"github.com/ucplabs/ucp-bridge/internal/event"
	"github.com/ucplabs/ucp-bridge/internal/format"
	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
)

// CheckoutService coordinates the token codec, the session store and the
// response formatter for each protocol operation.
type CheckoutService struct {
	store    engine.Store
	producer event.Publisher
	logger   *slog.Logger
	locks    *tokenLocker
}

// NewCheckoutService creates a new checkout orchestrator.
func NewCheckoutService(store engine.Store, producer event.Publisher, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		store:    store,
		producer: producer,
		logger:   logger,
		locks:    newTokenLocker(),
	}
}

// ItemInput is one requested cart line.
type ItemInput struct {
	ID       string `json:"id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreateInput holds the parameters for creating a session. Items are optional;
// a create without items yields an empty cart.
type CreateInput struct {
	Items []ItemInput `json:"items" validate:"omitempty,dive"`
}

// UpdateInput holds the parameters for updating a session. Each field is
// applied only when present: items and discount codes replace wholesale
// (present-but-empty clears), the address merges field by field. Absent
// fields leave the session untouched.
type UpdateInput struct {
	Items           *[]ItemInput         `json:"items" validate:"omitempty,dive"`
	DiscountCodes   *[]string            `json:"discount_codes"`
	ShippingAddress *domain.AddressPatch `json:"shipping_address"`
}

// Create provisions a new session, optionally seeding it with items, and
// returns the session under a freshly minted token.
func (s *CheckoutService) Create(ctx context.Context, input *CreateInput) (*format.CheckoutPayload, error) {
	h, err := s.store.StartOrResume(ctx, "")
	if err != nil {
		return nil, err
	}

	var items []ItemInput
	if input != nil {
		items = input.Items
	}
	if len(items) > 0 {
		if err := s.store.SetItems(ctx, h, itemRequests(items)); err != nil {
			return nil, err
		}
	}

	sess, err := s.store.State(ctx, h)
	if err != nil {
		return nil, err
	}

	s.producer.SessionCreated(ctx, sess)
	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("cart_ref", h.CartRef),
		slog.Int("items", len(sess.Items)),
	)

	payload := format.Session(h.Token(), sess, nil)
	return &payload, nil
}

// Update applies the given mutations to the session behind tok and returns the
// refreshed session with server-recomputed totals. Mutations on the same token
// are serialized; distinct tokens proceed independently.
func (s *CheckoutService) Update(ctx context.Context, tok string, input *UpdateInput) (*format.CheckoutPayload, error) {
	if input == nil {
		input = &UpdateInput{}
	}

	unlock := s.locks.Lock(tok)
	defer unlock()

	h, err := s.store.StartOrResume(ctx, tok)
	if err != nil {
		return nil, err
	}
	if h.Completed() {
		// The underlying order already exists; the cart can no longer change.
		return nil, apperrors.AlreadyCompleted()
	}

	if input.Items != nil {
		if err := s.store.SetItems(ctx, h, itemRequests(*input.Items)); err != nil {
			return nil, err
		}
	}

	var messages []domain.Message
	if input.DiscountCodes != nil {
		messages, err = s.store.SetCoupons(ctx, h, *input.DiscountCodes)
		if err != nil {
			return nil, err
		}
	}

	if input.ShippingAddress != nil {
		if err := s.store.SetShippingAddress(ctx, h, *input.ShippingAddress); err != nil {
			return nil, err
		}
	}

	sess, err := s.store.State(ctx, h)
	if err != nil {
		return nil, err
	}

	s.producer.SessionUpdated(ctx, sess)

	payload := format.Session(h.Token(), sess, messages)
	return &payload, nil
}

// Complete converts the session's cart into an order and returns the
// escalation payload pointing at the out-of-band payment URL. The returned
// token resolves to the order from now on; a repeated Complete on it yields
// ALREADY_COMPLETED.
func (s *CheckoutService) Complete(ctx context.Context, tok string) (*format.EscalationPayload, error) {
	unlock := s.locks.Lock(tok)
	defer unlock()

	h, err := s.store.StartOrResume(ctx, tok)
	if err != nil {
		return nil, err
	}
	if h.Completed() {
		return nil, apperrors.AlreadyCompleted()
	}

	order, err := s.store.Checkout(ctx, h)
	if err != nil {
		return nil, err
	}

	s.producer.SessionCompleted(ctx, order)
	s.logger.InfoContext(ctx, "checkout session completed",
		slog.String("cart_ref", h.CartRef),
		slog.Int64("order_id", order.ID),
	)

	completed := engine.Handle{CartRef: h.CartRef, OrderID: order.ID}
	payload := format.Escalation(completed.Token(), order)
	return &payload, nil
}

func itemRequests(items []ItemInput) []domain.ItemRequest {
	reqs := make([]domain.ItemRequest, 0, len(items))
	for _, it := range items {
		reqs = append(reqs, domain.ItemRequest{ProductID: it.ID, Quantity: it.Quantity})
	}
	return reqs
}
