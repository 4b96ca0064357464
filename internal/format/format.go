// Package format projects internal session and order state into the external
// protocol schema. The engine reports money in currency minor units; the
// protocol speaks decimal major units, so every amount crosses through
// MajorUnits exactly once, here.
package format

import (
	"math"

	"github.com/ucplabs/ucp-bridge/internal/domain"
)

// CheckoutPayload is the external representation of a checkout session.
type CheckoutPayload struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Currency        string            `json:"currency"`
	Total           float64           `json:"total"`
	Subtotal        float64           `json:"subtotal"`
	TaxTotal        float64           `json:"tax_total"`
	ShippingTotal   float64           `json:"shipping_total"`
	DiscountTotal   float64           `json:"discount_total"`
	AppliedCoupons  []string          `json:"applied_coupons"`
	LineItems       []LineItemPayload `json:"line_items"`
	ShippingAddress *domain.Address   `json:"shipping_address,omitempty"`
	Messages        []domain.Message  `json:"messages,omitempty"`
}

// LineItemPayload is one cart line in the external schema.
type LineItemPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

// EscalationPayload is the terminal response of a completed checkout: the
// session now resolves to an order and the caller must follow ContinueURL to
// pay out-of-band.
type EscalationPayload struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Currency    string           `json:"currency,omitempty"`
	Total       float64          `json:"total,omitempty"`
	ContinueURL string           `json:"continue_url"`
	Messages    []domain.Message `json:"messages"`
}

// MajorUnits converts an amount in minor units to decimal major units, rounded
// to the currency's precision. minorUnit 0 means the currency has no minor
// units and the amount passes through unchanged.
func MajorUnits(minor int64, minorUnit int) float64 {
	if minorUnit <= 0 {
		return float64(minor)
	}
	return float64(minor) / math.Pow10(minorUnit)
}

// Session projects a session into the external schema under the given token.
// AppliedCoupons and LineItems are always present, never null.
func Session(tok string, sess *domain.CheckoutSession, messages []domain.Message) CheckoutPayload {
	items := make([]LineItemPayload, 0, len(sess.Items))
	for _, it := range sess.Items {
		items = append(items, LineItemPayload{
			ID:       it.ProductID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Total:    MajorUnits(it.LineTotal, sess.MinorUnit),
		})
	}

	coupons := sess.Coupons
	if coupons == nil {
		coupons = []string{}
	}

	return CheckoutPayload{
		ID:              tok,
		Status:          sess.Status,
		Currency:        sess.Currency,
		Total:           MajorUnits(sess.Totals.Total, sess.MinorUnit),
		Subtotal:        MajorUnits(sess.Totals.Subtotal, sess.MinorUnit),
		TaxTotal:        MajorUnits(sess.Totals.Tax, sess.MinorUnit),
		ShippingTotal:   MajorUnits(sess.Totals.Shipping, sess.MinorUnit),
		DiscountTotal:   MajorUnits(sess.Totals.Discount, sess.MinorUnit),
		AppliedCoupons:  coupons,
		LineItems:       items,
		ShippingAddress: sess.Address,
		Messages:        messages,
	}
}

// Escalation projects a freshly created order into the terminal escalation
// response, including the instruction message the caller should surface.
func Escalation(tok string, order *domain.Order) EscalationPayload {
	return EscalationPayload{
		ID:          tok,
		Status:      domain.StatusRequiresEscalation,
		Currency:    order.Currency,
		Total:       MajorUnits(order.Total, order.MinorUnit),
		ContinueURL: order.PaymentURL,
		Messages:    []domain.Message{domain.EscalationMessage()},
	}
}
