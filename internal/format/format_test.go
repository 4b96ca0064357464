package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ucplabs/ucp-bridge/internal/domain"
)

func TestMajorUnits(t *testing.T) {
	tests := []struct {
		name      string
		minor     int64
		minorUnit int
		want      float64
	}{
		{"cents", 2750, 2, 27.50},
		{"zero amount", 0, 2, 0},
		{"zero-decimal currency", 500, 0, 500},
		{"three decimals", 12345, 3, 12.345},
		{"negative adjustment", -150, 2, -1.50},
		{"single cent", 1, 2, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MajorUnits(tt.minor, tt.minorUnit), 1e-9)
		})
	}
}

func TestSession(t *testing.T) {
	sess := &domain.CheckoutSession{
		CartRef:   "abc",
		Status:    domain.StatusCart,
		Currency:  "USD",
		MinorUnit: 2,
		Items: []domain.LineItem{
			{ProductID: "42", Name: "Desk", Quantity: 2, LineTotal: 20000},
		},
		Coupons: []string{"SAVE10"},
		Totals: domain.Totals{
			Subtotal: 20000,
			Tax:      1900,
			Shipping: 500,
			Discount: 1000,
			Total:    21400,
		},
		Address: &domain.Address{City: "London", Country: "GB"},
	}

	got := Session("tok-1", sess, nil)

	assert.Equal(t, "tok-1", got.ID)
	assert.Equal(t, domain.StatusCart, got.Status)
	assert.Equal(t, "USD", got.Currency)
	assert.InDelta(t, 214.00, got.Total, 1e-9)
	assert.InDelta(t, 200.00, got.Subtotal, 1e-9)
	assert.InDelta(t, 19.00, got.TaxTotal, 1e-9)
	assert.InDelta(t, 5.00, got.ShippingTotal, 1e-9)
	assert.InDelta(t, 10.00, got.DiscountTotal, 1e-9)
	assert.Equal(t, []string{"SAVE10"}, got.AppliedCoupons)
	assert.Equal(t, sess.Address, got.ShippingAddress)

	if assert.Len(t, got.LineItems, 1) {
		item := got.LineItems[0]
		assert.Equal(t, "42", item.ID)
		assert.Equal(t, "Desk", item.Name)
		assert.Equal(t, 2, item.Quantity)
		assert.InDelta(t, 200.00, item.Total, 1e-9)
	}

	// The identity the engine guarantees must survive the conversion.
	assert.InDelta(t, got.Total, got.Subtotal+got.TaxTotal+got.ShippingTotal-got.DiscountTotal, 1e-9)
}

func TestSessionEmptyCollectionsNotNull(t *testing.T) {
	got := Session("tok", &domain.CheckoutSession{Status: domain.StatusCart}, nil)

	assert.NotNil(t, got.AppliedCoupons)
	assert.Empty(t, got.AppliedCoupons)
	assert.NotNil(t, got.LineItems)
	assert.Empty(t, got.LineItems)
	assert.Nil(t, got.ShippingAddress)
	assert.Empty(t, got.Messages)
}

func TestSessionCarriesMessages(t *testing.T) {
	msgs := []domain.Message{domain.CouponRejectedMessage("BOGUS", "coupon does not exist")}
	got := Session("tok", &domain.CheckoutSession{Status: domain.StatusCart}, msgs)

	if assert.Len(t, got.Messages, 1) {
		assert.Equal(t, domain.CodeCouponRejected, got.Messages[0].Code)
	}
}

func TestEscalation(t *testing.T) {
	order := &domain.Order{
		ID:         101,
		Currency:   "USD",
		MinorUnit:  2,
		Total:      2750,
		PaymentURL: "https://store.example/orders/101/pay",
	}

	got := Escalation("tok-2", order)

	assert.Equal(t, "tok-2", got.ID)
	assert.Equal(t, domain.StatusRequiresEscalation, got.Status)
	assert.InDelta(t, 27.50, got.Total, 1e-9)
	assert.Equal(t, "https://store.example/orders/101/pay", got.ContinueURL)

	if assert.Len(t, got.Messages, 1) {
		assert.Equal(t, domain.CodeEscalationRequired, got.Messages[0].Code)
		assert.Equal(t, domain.SeverityEscalation, got.Messages[0].Severity)
	}
}
