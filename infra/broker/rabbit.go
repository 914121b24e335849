package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/ledger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKeyOrderPaid is the topic key order paid events are published with
const RoutingKeyOrderPaid = "storepay.order.paid"

// OrderPaidEvent is the message body published when an order is settled as paid
type OrderPaidEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   int64     `json:"order_id"`
	TenantID  int64     `json:"tenant_id"`
	ProductID int64     `json:"product_id"`
	Provider  string    `json:"provider_name"`
	Amount    string    `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	// BuyerRef and Message are set only when the buyer left a handle to notify
	BuyerRef string `json:"buyer_ref,omitempty"`
	Message  string `json:"message,omitempty"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends order events to a RabbitMQ topic exchange
type Publisher struct {
	exchange string
	conn     *amqp.Connection

	mu sync.Mutex
	ch channel
}

// Dial connects to RabbitMQ and declares the durable topic exchange
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	logger.Info("Connected to RabbitMQ", logger.LogContext{Fields: map[string]any{"exchange": exchange}})
	return &Publisher{exchange: exchange, conn: conn, ch: ch}, nil
}

func newPublisher(exchange string, ch channel) *Publisher {
	return &Publisher{exchange: exchange, ch: ch}
}

// OrderPaid publishes an OrderPaidEvent for the order
func (p *Publisher) OrderPaid(ctx context.Context, order *ledger.Order) error {
	event := OrderPaidEvent{
		EventID:   uuid.NewString(),
		OrderID:   order.ID,
		TenantID:  order.TenantID,
		ProductID: order.ProductID,
		Provider:  order.Provider,
		Amount:    order.Amount.StringFixed(2),
		PaidAt:    order.UpdatedAt,
	}
	if order.BuyerRef != "" {
		event.BuyerRef = order.BuyerRef
		event.Message = fmt.Sprintf("Your order #%d is paid!", order.ID)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyOrderPaid, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish order %d: %w", order.ID, err)
	}
	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
