package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mstgnz/storepay/ledger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_OrderPaid(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher("storepay.events", ch)

	paidAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	err := p.OrderPaid(context.Background(), &ledger.Order{
		ID:        42,
		TenantID:  3,
		ProductID: 7,
		Provider:  "robokassa",
		Amount:    decimal.RequireFromString("100"),
		Status:    ledger.StatusPaid,
		UpdatedAt: paidAt,
	})
	require.NoError(t, err)
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "storepay.events", sent.exchange)
	assert.Equal(t, RoutingKeyOrderPaid, sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.NotEmpty(t, sent.msg.MessageId)

	var event OrderPaidEvent
	require.NoError(t, json.Unmarshal(sent.msg.Body, &event))
	assert.Equal(t, sent.msg.MessageId, event.EventID)
	assert.Equal(t, int64(42), event.OrderID)
	assert.Equal(t, int64(3), event.TenantID)
	assert.Equal(t, "100.00", event.Amount)
	assert.True(t, paidAt.Equal(event.PaidAt))
	assert.Empty(t, event.BuyerRef)
	assert.Empty(t, event.Message)
}

func TestPublisher_OrderPaid_BuyerNotice(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher("storepay.events", ch)

	err := p.OrderPaid(context.Background(), &ledger.Order{
		ID:       17,
		TenantID: 3,
		Provider: "coinpayments",
		BuyerRef: "5550123",
		Amount:   decimal.RequireFromString("9.5"),
		Status:   ledger.StatusPaid,
	})
	require.NoError(t, err)
	require.Len(t, ch.sent, 1)

	var event OrderPaidEvent
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &event))
	assert.Equal(t, "5550123", event.BuyerRef)
	assert.Equal(t, "Your order #17 is paid!", event.Message)
	assert.Equal(t, "9.50", event.Amount)
}

func TestPublisher_OrderPaid_Error(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := newPublisher("storepay.events", ch)

	err := p.OrderPaid(context.Background(), &ledger.Order{ID: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order 5")
}

func TestPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher("x", ch)
	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
