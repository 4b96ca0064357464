package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ucplabs/ucp-bridge/internal/domain"
	"github.com/ucplabs/ucp-bridge/internal/token"
	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
)

// Handle identifies one resolved session: the engine's cart reference plus
// the order id once the cart has been converted. It replaces the engine's
// historical reliance on ambient cookie state so it can be threaded through
// concurrent, non-browser callers.
type Handle struct {
	CartRef string
	OrderID int64
}

// Completed reports whether the session was already converted to an order.
func (h Handle) Completed() bool { return h.OrderID != 0 }

// Token returns the opaque client-held token for this handle.
func (h Handle) Token() string {
	return token.Encode(token.Identity{OrderID: h.OrderID, CartRef: h.CartRef})
}

// Store is the session store boundary: the only way the rest of the bridge
// reads or writes cart and order state.
type Store interface {
	// StartOrResume provisions a fresh cart when tok is empty, or decodes and
	// rehydrates an existing session. A token whose backend state is gone
	// yields SESSION_NOT_FOUND.
	StartOrResume(ctx context.Context, tok string) (Handle, error)

	// SetItems replaces the cart's items wholesale. Transactional from the
	// caller's perspective: on failure the pre-call item set is restored.
	SetItems(ctx context.Context, h Handle, items []domain.ItemRequest) error

	// SetCoupons removes all applied coupons, then applies the given codes in
	// order. Rejected codes are reported as warning messages and do not block
	// later codes; the call errors only when every code is rejected.
	SetCoupons(ctx context.Context, h Handle, codes []string) ([]domain.Message, error)

	// SetShippingAddress merges only the supplied patch fields into the
	// current address. The engine recalculates shipping and tax.
	SetShippingAddress(ctx context.Context, h Handle, patch domain.AddressPatch) error

	// State rehydrates the full session with server-recomputed totals. It is
	// idempotent and side-effect free.
	State(ctx context.Context, h Handle) (*domain.CheckoutSession, error)

	// Checkout converts the cart into an order pending out-of-band payment.
	// Not idempotent: a second call on the same handle yields ALREADY_COMPLETED.
	Checkout(ctx context.Context, h Handle) (*domain.Order, error)
}

// SessionStore implements Store against the engine's Store API.
type SessionStore struct {
	client *Client
	logger *slog.Logger
}

// NewSessionStore creates the Store API backed session store.
func NewSessionStore(client *Client, logger *slog.Logger) *SessionStore {
	return &SessionStore{client: client, logger: logger}
}

func (s *SessionStore) StartOrResume(ctx context.Context, tok string) (Handle, error) {
	if tok == "" {
		ref := token.NewCartRef()
		if err := s.client.CreateCart(ctx, ref); err != nil {
			return Handle{}, fmt.Errorf("provision cart: %w", err)
		}
		return Handle{CartRef: ref}, nil
	}

	id, err := token.Decode(tok)
	if err != nil {
		return Handle{}, err
	}

	h := Handle{CartRef: id.CartRef, OrderID: id.OrderID}

	// A converted session's cart may already be gone on the engine side; it
	// resolves to the order now, so skip cart verification.
	if h.Completed() {
		return h, nil
	}

	if _, err := s.client.Cart(ctx, h.CartRef); err != nil {
		return Handle{}, fmt.Errorf("resume session: %w", err)
	}
	return h, nil
}

func (s *SessionStore) SetItems(ctx context.Context, h Handle, items []domain.ItemRequest) error {
	for _, it := range items {
		if it.ProductID == "" {
			return apperrors.InvalidInput("item product id is required")
		}
		if it.Quantity < 1 {
			return apperrors.InvalidInput(fmt.Sprintf("item %s quantity must be at least 1", it.ProductID))
		}
	}

	// Snapshot the pre-call state so a failed replacement can be rolled back.
	prev, err := s.client.Cart(ctx, h.CartRef)
	if err != nil {
		return fmt.Errorf("snapshot cart before replace: %w", err)
	}

	if err := s.client.ClearItems(ctx, h.CartRef); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	for _, it := range items {
		if err := s.client.AddItem(ctx, h.CartRef, it); err != nil {
			s.restoreItems(ctx, h, prev.Items)
			return err
		}
	}

	return nil
}

// restoreItems re-applies the snapshot after a failed replacement. Restore
// failures are logged, not returned: the original error is what the caller
// needs to see.
func (s *SessionStore) restoreItems(ctx context.Context, h Handle, items []domain.LineItem) {
	if err := s.client.ClearItems(ctx, h.CartRef); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart during rollback",
			slog.String("cart_ref", h.CartRef),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, it := range items {
		req := domain.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
		if err := s.client.AddItem(ctx, h.CartRef, req); err != nil {
			s.logger.ErrorContext(ctx, "failed to restore cart item during rollback",
				slog.String("cart_ref", h.CartRef),
				slog.String("product_id", it.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *SessionStore) SetCoupons(ctx context.Context, h Handle, codes []string) ([]domain.Message, error) {
	if err := s.client.ClearCoupons(ctx, h.CartRef); err != nil {
		return nil, fmt.Errorf("clear coupons: %w", err)
	}

	// Enforce code uniqueness while preserving the caller's order.
	seen := make(map[string]bool, len(codes))
	var messages []domain.Message
	applied := 0

	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		err := s.client.ApplyCoupon(ctx, h.CartRef, code)
		if err == nil {
			applied++
			continue
		}
		if errors.Is(err, apperrors.ErrCouponRejected) {
			messages = append(messages, domain.CouponRejectedMessage(code, rejectionReason(err)))
			continue
		}
		return nil, err
	}

	if len(seen) > 0 && applied == 0 {
		return messages, apperrors.CouponRejected("none of the requested discount codes could be applied")
	}

	return messages, nil
}

func rejectionReason(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "rejected by the store"
}

func (s *SessionStore) SetShippingAddress(ctx context.Context, h Handle, patch domain.AddressPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	cur, err := s.client.Cart(ctx, h.CartRef)
	if err != nil {
		return fmt.Errorf("load address for merge: %w", err)
	}

	merged := domain.Address{}
	if cur.Address != nil {
		merged = *cur.Address
	}
	applyAddressPatch(&merged, patch)

	if err := s.client.UpdateCustomer(ctx, h.CartRef, merged); err != nil {
		return fmt.Errorf("update shipping address: %w", err)
	}
	return nil
}

func applyAddressPatch(dst *domain.Address, patch domain.AddressPatch) {
	if patch.FirstName != nil {
		dst.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		dst.LastName = *patch.LastName
	}
	if patch.Line1 != nil {
		dst.Line1 = *patch.Line1
	}
	if patch.Line2 != nil {
		dst.Line2 = *patch.Line2
	}
	if patch.City != nil {
		dst.City = *patch.City
	}
	if patch.Region != nil {
		dst.Region = *patch.Region
	}
	if patch.PostalCode != nil {
		dst.PostalCode = *patch.PostalCode
	}
	if patch.Country != nil {
		dst.Country = *patch.Country
	}
}

func (s *SessionStore) State(ctx context.Context, h Handle) (*domain.CheckoutSession, error) {
	sess, err := s.client.Cart(ctx, h.CartRef)
	if err != nil {
		return nil, err
	}
	sess.OrderID = h.OrderID
	if h.Completed() {
		sess.Status = domain.StatusRequiresEscalation
	}
	return sess, nil
}

func (s *SessionStore) Checkout(ctx context.Context, h Handle) (*domain.Order, error) {
	return s.client.PlaceOrder(ctx, h.CartRef)
}
