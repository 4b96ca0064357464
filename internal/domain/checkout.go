package domain

// Checkout session statuses. A session stays in "cart" while the agent builds
// it and moves to "requires_escalation" once the underlying order exists and
// only an out-of-band payment step remains.
const (
	StatusCart               = "cart"
	StatusRequiresEscalation = "requires_escalation"
)

// CheckoutSession is the bridge's view of one live session, rehydrated from
// the commerce engine on every call. All monetary amounts are in the
// currency's minor units (e.g. cents); MinorUnit says how many decimal places
// the currency carries.
type CheckoutSession struct {
	CartRef   string
	OrderID   int64
	Status    string
	Currency  string
	MinorUnit int
	Items     []LineItem
	Coupons   []string
	Totals    Totals
	Address   *Address
}

// LineItem is one product+quantity entry in the cart. LineTotal is the
// engine-computed line subtotal in minor units.
type LineItem struct {
	ProductID string
	Name      string
	Quantity  int
	LineTotal int64
}

// Totals holds the engine-computed cart totals in minor units. They are always
// recomputed server-side, never trusted from client input.
type Totals struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Discount int64
	Total    int64
}

// Address is a structured shipping address.
type Address struct {
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Line1      string `json:"address_line1,omitempty"`
	Line2      string `json:"address_line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// AddressPatch is a partial address update. Only non-nil fields are applied;
// items and coupons replace wholesale, the address merges field by field.
type AddressPatch struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Line1      *string `json:"address_line1,omitempty"`
	Line2      *string `json:"address_line2,omitempty"`
	City       *string `json:"city,omitempty"`
	Region     *string `json:"region,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p AddressPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Line1 == nil && p.Line2 == nil &&
		p.City == nil && p.Region == nil && p.PostalCode == nil && p.Country == nil
}

// ItemRequest is a requested cart line: product id plus quantity.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// Order is the result of converting a cart via checkout. PaymentURL is the
// escalation target the caller must open in a browser to pay.
type Order struct {
	ID         int64
	CartRef    string
	Status     string
	Currency   string
	MinorUnit  int
	Total      int64
	PaymentURL string
}

// Message severities and codes surfaced to callers alongside a session.
const (
	MessageTypeInfo    = "info"
	MessageTypeWarning = "warning"

	SeverityEscalation = "escalation"
	SeverityWarning    = "warning"

	CodeEscalationRequired = "ESCALATION_REQUIRED"
	CodeCouponRejected     = "COUPON_REJECTED"
)

// Message is an informational or warning note attached to a response, such as
// a rejected coupon code or the payment escalation instruction.
type Message struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Content  string `json:"content"`
	Severity string `json:"severity"`
}

// EscalationMessage is the instruction returned with every completed checkout.
func EscalationMessage() Message {
	return Message{
		Type:     MessageTypeInfo,
		Code:     CodeEscalationRequired,
		Content:  "Payment requires browser checkout. Please follow the link to complete payment.",
		Severity: SeverityEscalation,
	}
}

// CouponRejectedMessage describes one discount code the engine refused.
func CouponRejectedMessage(code, reason string) Message {
	return Message{
		Type:     MessageTypeWarning,
		Code:     CodeCouponRejected,
		Content:  "coupon " + code + " was not applied: " + reason,
		Severity: SeverityWarning,
	}
}
