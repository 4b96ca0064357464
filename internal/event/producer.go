package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ucplabs/ucp-bridge/internal/domain"
	"github.com/ucplabs/ucp-bridge/pkg/kafka"
)

// Kafka topic constants for checkout session lifecycle events.
const (
	TopicCheckoutCreated   = "ucp.checkout.created"
	TopicCheckoutUpdated   = "ucp.checkout.updated"
	TopicCheckoutCompleted = "ucp.checkout.completed"
)

// Aggregate type constant.
const AggregateTypeCheckout = "checkout_session"

// Source identifier for events originating from the bridge.
const SourceBridge = "ucp-bridge"

// SessionData is the payload for checkout.created and checkout.updated events.
type SessionData struct {
	CartRef     string   `json:"cart_ref"`
	Status      string   `json:"status"`
	Currency    string   `json:"currency"`
	ItemCount   int      `json:"item_count"`
	Coupons     []string `json:"coupons,omitempty"`
	TotalAmount int64    `json:"total_amount"`
}

// CompletedData is the payload for a checkout.completed event.
type CompletedData struct {
	CartRef     string `json:"cart_ref"`
	OrderID     int64  `json:"order_id"`
	Currency    string `json:"currency"`
	TotalAmount int64  `json:"total_amount"`
	PaymentURL  string `json:"payment_url"`
}

// Publisher emits checkout lifecycle events. The orchestrator treats
// publishing as best-effort, so implementations must not block requests on
// broker health.
type Publisher interface {
	SessionCreated(ctx context.Context, sess *domain.CheckoutSession)
	SessionUpdated(ctx context.Context, sess *domain.CheckoutSession)
	SessionCompleted(ctx context.Context, order *domain.Order)
}

// Producer publishes checkout lifecycle events to Kafka. Publish failures are
// logged and swallowed: a broker outage must never fail a checkout call.
type Producer struct {
	kafka  *kafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new lifecycle event producer.
func NewProducer(producer *kafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  producer,
		logger: logger,
	}
}

// SessionCreated publishes a checkout.created event.
func (p *Producer) SessionCreated(ctx context.Context, sess *domain.CheckoutSession) {
	p.publishSession(ctx, TopicCheckoutCreated, sess)
}

// SessionUpdated publishes a checkout.updated event.
func (p *Producer) SessionUpdated(ctx context.Context, sess *domain.CheckoutSession) {
	p.publishSession(ctx, TopicCheckoutUpdated, sess)
}

func (p *Producer) publishSession(ctx context.Context, topic string, sess *domain.CheckoutSession) {
	data := SessionData{
		CartRef:     sess.CartRef,
		Status:      sess.Status,
		Currency:    sess.Currency,
		ItemCount:   len(sess.Items),
		Coupons:     sess.Coupons,
		TotalAmount: sess.Totals.Total,
	}

	if err := p.publish(ctx, topic, sess.CartRef, data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish checkout lifecycle event",
			slog.String("topic", topic),
			slog.String("cart_ref", sess.CartRef),
			slog.String("error", err.Error()),
		)
	}
}

// SessionCompleted publishes a checkout.completed event.
func (p *Producer) SessionCompleted(ctx context.Context, order *domain.Order) {
	data := CompletedData{
		CartRef:     order.CartRef,
		OrderID:     order.ID,
		Currency:    order.Currency,
		TotalAmount: order.Total,
		PaymentURL:  order.PaymentURL,
	}

	if err := p.publish(ctx, TopicCheckoutCompleted, order.CartRef, data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish checkout.completed event",
			slog.String("cart_ref", order.CartRef),
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	evt, err := kafka.NewEvent(topic, aggregateID, AggregateTypeCheckout, SourceBridge, data)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// NopPublisher discards all events. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) SessionCreated(context.Context, *domain.CheckoutSession) {}
func (NopPublisher) SessionUpdated(context.Context, *domain.CheckoutSession) {}
func (NopPublisher) SessionCompleted(context.Context, *domain.Order)         {}
