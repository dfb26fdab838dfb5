package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

// Connection is the subset of *amqp.Connection used by the publisher.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Channel is the subset of *amqp.Channel used by the publisher.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type DialFunc func(url string) (Connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Dial opens a real broker connection.
func Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

var ErrPublisherClosed = errors.New("publisher is closed")

// queuePublisher keeps one connection for the process and redials lazily
// after the broker drops it. Publishes are serialized on mu.
type queuePublisher struct {
	mu     sync.Mutex
	dial   DialFunc
	url    string
	queue  string
	conn   Connection
	ch     Channel
	closed bool
	logger *zap.Logger
}

func NewPublisher(url, queue string, dial DialFunc, l *zap.Logger) Publisher {
	if dial == nil {
		dial = Dial
	}
	l.Info("RabbitMQ publisher initialized", zap.String("queue", queue))
	return &queuePublisher{
		dial:   dial,
		url:    url,
		queue:  queue,
		logger: l,
	}
}

func (p *queuePublisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	ch, err := p.channel()
	if err != nil {
		p.logger.Error("Failed to open RabbitMQ channel", zap.String("queue", p.queue), zap.Error(err))
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.reset()
		p.logger.Error("Failed to declare RabbitMQ queue", zap.String("queue", p.queue), zap.Error(err))
		return fmt.Errorf("failed to declare queue %s: %w", p.queue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		p.logger.Error("Failed to publish message to RabbitMQ queue", zap.String("queue", p.queue), zap.Error(err))
		return fmt.Errorf("failed to send message to RabbitMQ: %w", err)
	}

	p.logger.Debug("Published message to queue",
		zap.String("queue", p.queue),
		zap.String("message_id", msg.MessageId))
	return nil
}

// channel returns the cached channel, dialing a new connection when the
// previous one is gone. Caller holds mu.
func (p *queuePublisher) channel() (Channel, error) {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := p.dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("Connected to RabbitMQ", zap.String("queue", p.queue))
	return ch, nil
}

func (p *queuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *queuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = cerr
		}
		p.conn = nil
	}
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		p.logger.Error("Failed to close RabbitMQ publisher", zap.Error(err))
		return fmt.Errorf("failed to close RabbitMQ publisher: %w", err)
	}
	p.logger.Info("RabbitMQ publisher closed.")
	return nil
}
