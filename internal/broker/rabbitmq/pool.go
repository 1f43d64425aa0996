// Package rabbitmq announces placed orders on a RabbitMQ queue.
package rabbitmq

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("channel pool is closed")

// ChannelPool shares a fixed number of AMQP channels over one connection.
// Every channel has the target queue declared.
type ChannelPool struct {
	conn     *amqp.Connection
	channels chan *amqp.Channel
	queue    string

	mu     sync.Mutex
	closed bool
}

// NewChannelPool dials url and opens size channels.
func NewChannelPool(url, queue string, size int) (*ChannelPool, error) {
	if size <= 0 {
		size = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}

	p := &ChannelPool{
		conn:     conn,
		channels: make(chan *amqp.Channel, size),
		queue:    queue,
	}
	for i := range size {
		ch, err := p.open()
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "open channel %d", i)
		}
		p.channels <- ch
	}
	return p, nil
}

func (p *ChannelPool) open() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "declare queue")
	}
	return ch, nil
}

// Get takes a channel, waiting for one to be returned when all are in use.
// A channel closed by the server is replaced.
func (p *ChannelPool) Get(ctx context.Context) (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, ErrPoolClosed
		}
		if ch.IsClosed() {
			fresh, err := p.open()
			if err != nil {
				// Keep the pool size: the slot is retried by the next caller.
				p.Put(ch)
				return nil, errors.Wrap(err, "reopen channel")
			}
			return fresh, nil
		}
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a channel taken with Get.
func (p *ChannelPool) Put(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		_ = ch.Close()
	}
}

// Queue returns the name of the declared queue.
func (p *ChannelPool) Queue() string {
	return p.queue
}

// Ping is a readiness check for the connection.
func (p *ChannelPool) Ping(context.Context) error {
	if p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Close closes every idle channel and the connection.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.channels)
	for ch := range p.channels {
		_ = ch.Close()
	}
	_ = p.conn.Close()
}
