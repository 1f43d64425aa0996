package rabbitmq

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xenking/larek/internal/domain/order"
	"github.com/xenking/larek/internal/wire"
)

// EventOrderPlaced is the message type of order announcements.
const EventOrderPlaced = "order.placed"

// channel is the part of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type channelPool interface {
	Get(ctx context.Context) (*amqp.Channel, error)
	Put(ch *amqp.Channel)
	Queue() string
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher sends placed orders to the pool's queue as persistent JSON
// messages.
type Publisher struct {
	acquire func(ctx context.Context) (channel, func(), error)
	queue   string
	timeout time.Duration
}

// NewPublisher creates a Publisher over pool. timeout bounds a single
// publish; zero means 5 seconds.
func NewPublisher(pool channelPool, timeout time.Duration) *Publisher {
	return newPublisher(func(ctx context.Context) (channel, func(), error) {
		ch, err := pool.Get(ctx)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { pool.Put(ch) }, nil
	}, pool.Queue(), timeout)
}

func newPublisher(acquire func(ctx context.Context) (channel, func(), error), queue string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{acquire: acquire, queue: queue, timeout: timeout}
}

// Message builds the AMQP message announcing rec.
func Message(rec *order.Record) amqp.Publishing {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeRecord(e, rec)

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    rec.ID,
		Type:         EventOrderPlaced,
		Timestamp:    rec.CreatedAt,
		Body:         append([]byte(nil), e.Bytes()...),
	}
}

// OrderPlaced publishes rec.
func (p *Publisher) OrderPlaced(ctx context.Context, rec *order.Record) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ch, release, err := p.acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "get channel")
	}
	defer release()

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		Message(rec),
	); err != nil {
		return errors.Wrapf(err, "publish order %s", rec.ID)
	}

	zctx.From(ctx).Debug("Order published",
		zap.String("order_id", rec.ID),
		zap.String("queue", p.queue),
	)
	return nil
}
