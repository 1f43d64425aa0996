package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/wire"
)

type fakeChannel struct {
	key  string
	msg  amqp.Publishing
	err  error
	sent int
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.key = key
	f.msg = msg
	f.sent++
	return nil
}

func testRecord() *order.Record {
	return &order.Record{
		ID: "order-1",
		Order: order.Order{
			Payment: order.PaymentCash,
			Email:   "a@b.ru",
			Phone:   "+79991234567",
			Address: "Moscow",
			Total:   decimal.NewFromInt(750),
			Items:   []string{"a"},
		},
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMessage(t *testing.T) {
	rec := testRecord()
	msg := Message(rec)

	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "order-1", msg.MessageId)
	assert.Equal(t, EventOrderPlaced, msg.Type)

	got, err := wire.DecodeRecord(jx.DecodeBytes(msg.Body))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Order.Items, got.Order.Items)
}

func TestPublisher_OrderPlaced(t *testing.T) {
	ch := &fakeChannel{}
	released := 0
	p := newPublisher(func(context.Context) (channel, func(), error) {
		return ch, func() { released++ }, nil
	}, "orders", 0)

	require.NoError(t, p.OrderPlaced(context.Background(), testRecord()))
	assert.Equal(t, 1, ch.sent)
	assert.Equal(t, "orders", ch.key)
	assert.Equal(t, 1, released)
}

func TestPublisher_Errors(t *testing.T) {
	t.Run("publish fails", func(t *testing.T) {
		ch := &fakeChannel{err: errors.New("channel closed")}
		released := 0
		p := newPublisher(func(context.Context) (channel, func(), error) {
			return ch, func() { released++ }, nil
		}, "orders", time.Second)

		err := p.OrderPlaced(context.Background(), testRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "order-1")
		assert.Equal(t, 1, released, "channel is returned on failure")
	})

	t.Run("no channel", func(t *testing.T) {
		p := newPublisher(func(context.Context) (channel, func(), error) {
			return nil, nil, ErrPoolClosed
		}, "orders", time.Second)

		err := p.OrderPlaced(context.Background(), testRecord())
		require.ErrorIs(t, err, ErrPoolClosed)
	})
}
