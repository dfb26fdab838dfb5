package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrMalformedMessage marks a delivery that can never be processed. Such
// deliveries are rejected without requeue.
var ErrMalformedMessage = errors.New("malformed message")

// MessageHandler processes one delivery. nil acks it, an error wrapping
// ErrMalformedMessage rejects it, any other error requeues it.
type MessageHandler func(ctx context.Context, d amqp.Delivery) error

// Connection is the subset of *amqp.Connection used by the consumer.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	NotifyBlocked(receiver chan amqp.Blocking) chan amqp.Blocking
	Close() error
}

// Channel is the subset of *amqp.Channel used by the consumer.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type DialFunc func(url string, cfg amqp.Config) (Connection, error)

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

func Dial(url string, cfg amqp.Config) (Connection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

type ConsumerConfig struct {
	URL            string
	Queue          string
	ConsumerTag    string
	Heartbeat      time.Duration
	DialTimeout    time.Duration
	BlockedTimeout time.Duration
	ReconnectDelay time.Duration
	ProcessTimeout time.Duration
}

// Consumer drains one durable queue with prefetch 1, reconnecting forever
// until its context is cancelled. Messages are handled sequentially on the
// goroutine that calls Run.
type Consumer struct {
	cfg     ConsumerConfig
	dial    DialFunc
	handler MessageHandler
	logger  *zap.Logger
	state   atomic.Int32
}

func NewConsumer(cfg ConsumerConfig, dial DialFunc, handler MessageHandler, l *zap.Logger) *Consumer {
	if dial == nil {
		dial = Dial
	}
	return &Consumer{
		cfg:     cfg,
		dial:    dial,
		handler: handler,
		logger:  l,
	}
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) fire(e Event) State {
	from := c.State()
	to := Transition(from, e)
	c.state.Store(int32(to))
	if from != to {
		c.logger.Debug("Consumer state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.Stringer("event", e))
	}
	return to
}

type session struct {
	conn       Connection
	ch         Channel
	deliveries <-chan amqp.Delivery
	closed     chan *amqp.Error
	blocked    chan amqp.Blocking
}

func (s *session) close() error {
	var errs []error
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run blocks until ctx is cancelled. It returns nil after the connection has
// been closed; a message in flight at cancellation is finished first.
func (c *Consumer) Run(ctx context.Context) error {
	c.state.Store(int32(StateDisconnected))

	var (
		sess    *session
		backoff bool
	)
	for {
		switch c.State() {
		case StateDisconnected:
			if backoff {
				c.logger.Info("Reconnecting to RabbitMQ", zap.Duration("retry_in", c.cfg.ReconnectDelay))
				if !c.wait(ctx, c.cfg.ReconnectDelay) {
					c.fire(EventInterrupted)
					continue
				}
			}
			if ctx.Err() != nil {
				c.fire(EventInterrupted)
				continue
			}

			s, err := c.connect()
			if err != nil {
				c.logger.Error("Failed to connect to RabbitMQ", zap.String("queue", c.cfg.Queue), zap.Error(err))
				backoff = true
				c.fire(EventConnectFailed)
				continue
			}
			sess = s
			backoff = false
			c.logger.Info("Connected to RabbitMQ, consuming",
				zap.String("queue", c.cfg.Queue),
				zap.String("consumer_tag", c.cfg.ConsumerTag))
			c.fire(EventConnected)

		case StateConsuming:
			e := c.consume(ctx, sess)
			if e == EventConnectionLost {
				if err := sess.close(); err != nil {
					c.logger.Debug("Error closing lost RabbitMQ session", zap.Error(err))
				}
				sess = nil
				backoff = true
			}
			c.fire(e)

		case StateShutdown:
			if sess != nil {
				if err := sess.close(); err != nil {
					c.logger.Error("Error closing RabbitMQ connection", zap.Error(err))
				}
			}
			c.logger.Info("RabbitMQ consumer stopped.", zap.String("queue", c.cfg.Queue))
			return nil

		default:
			return fmt.Errorf("consumer in unknown state %d", c.State())
		}
	}
}

func (c *Consumer) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) connect() (*session, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(c.cfg.ConsumerTag)

	conn, err := c.dial(c.cfg.URL, amqp.Config{
		Heartbeat:  c.cfg.Heartbeat,
		Locale:     "en_US",
		Dial:       amqp.DefaultDial(c.cfg.DialTimeout),
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	s := &session{conn: conn}
	s.closed = conn.NotifyClose(make(chan *amqp.Error, 1))
	s.blocked = conn.NotifyBlocked(make(chan amqp.Blocking, 1))

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	s.ch = ch

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.Consume(c.cfg.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		_ = s.close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	s.deliveries = deliveries
	return s, nil
}

// consume handles deliveries until the session dies or ctx is cancelled and
// reports which of the two happened.
func (c *Consumer) consume(ctx context.Context, s *session) Event {
	var (
		blockedTimer *time.Timer
		blockedC     <-chan time.Time
	)
	defer func() {
		if blockedTimer != nil {
			blockedTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Interrupted, shutting down consumer...")
			return EventInterrupted

		case amqpErr, ok := <-s.closed:
			if ok && amqpErr != nil {
				c.logger.Error("Lost connection to RabbitMQ",
					zap.Int("code", amqpErr.Code),
					zap.String("reason", amqpErr.Reason),
					zap.Bool("server", amqpErr.Server))
			} else {
				c.logger.Error("Lost connection to RabbitMQ")
			}
			return EventConnectionLost

		case b, ok := <-s.blocked:
			if !ok {
				s.blocked = nil
				continue
			}
			if b.Active {
				c.logger.Warn("RabbitMQ connection blocked by broker",
					zap.String("reason", b.Reason),
					zap.Duration("timeout", c.cfg.BlockedTimeout))
				if blockedTimer == nil && c.cfg.BlockedTimeout > 0 {
					blockedTimer = time.NewTimer(c.cfg.BlockedTimeout)
					blockedC = blockedTimer.C
				}
			} else {
				c.logger.Info("RabbitMQ connection unblocked")
				if blockedTimer != nil {
					blockedTimer.Stop()
					blockedTimer = nil
					blockedC = nil
				}
			}

		case <-blockedC:
			c.logger.Error("RabbitMQ connection blocked for too long", zap.Duration("timeout", c.cfg.BlockedTimeout))
			return EventConnectionLost

		case d, ok := <-s.deliveries:
			if !ok {
				c.logger.Error("Channel closed by broker")
				return EventConnectionLost
			}
			c.process(ctx, d)
		}
	}
}

// process runs the handler and settles the delivery. The handler context
// ignores cancellation of ctx so a message in flight is never half done.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	pctx := context.WithoutCancel(ctx)
	if c.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, c.cfg.ProcessTimeout)
		defer cancel()
	}

	fields := []zap.Field{
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.String("message_id", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
	}

	err := c.handler(pctx, d)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to acknowledge message", append(fields, zap.Error(ackErr))...)
			return
		}
		c.logger.Debug("Message acknowledged", fields...)

	case errors.Is(err, ErrMalformedMessage):
		c.logger.Error("Rejecting malformed message", append(fields, zap.ByteString("body", d.Body), zap.Error(err))...)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to reject message", append(fields, zap.Error(nackErr))...)
		}

	default:
		c.logger.Error("Error processing message, requeueing", append(fields, zap.Error(err))...)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to requeue message", append(fields, zap.Error(nackErr))...)
		}
	}
}
