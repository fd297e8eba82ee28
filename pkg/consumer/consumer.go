// Package consumer consumes messages from a RabbitMQ topic exchange and lets handlers
// publish replies over a second, lazily opened connection.
//
// On Run the consumer declares the exchange, declares every configured queue and
// binds it once per routing-key pattern, then consumes all queues with a global
// prefetch of 1. Each delivery is acknowledged before the handler sees it, so a
// failing handler never causes redelivery.
package consumer

import (
	"context"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sf7293/sfm-utils/internal/domain"
	"github.com/sf7293/sfm-utils/internal/errval"
	"github.com/sf7293/sfm-utils/internal/metrics"
	"github.com/sf7293/sfm-utils/internal/rabbitmq"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type (
	Message        = domain.Message
	Publisher      = domain.Publisher
	MessageHandler = domain.MessageHandler
	HandlerFunc    = domain.HandlerFunc
	PublishOption  = domain.PublishOption
)

var (
	WithCorrelationID = domain.WithCorrelationID
	WithReplyTo       = domain.WithReplyTo
	WithContentType   = domain.WithContentType
	WithHeaders       = domain.WithHeaders
	WithPersistent    = domain.WithPersistent
)

const (
	DefaultConnectMaxRetries    = 5
	DefaultConnectRetryInterval = 3 * time.Second
)

type State int32

const (
	StateUninitialized State = iota
	StateDeclaring
	StateConsuming
	StateHandling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDeclaring:
		return "declaring"
	case StateConsuming:
		return "consuming"
	case StateHandling:
		return "handling"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Consumer struct {
	cfg                  *MqConfig
	url                  string
	handler              MessageHandler
	dial                 rabbitmq.Dialer
	consumerTag          string
	connectMaxRetries    uint64
	connectRetryInterval time.Duration
	logger               *slog.Logger
	state                atomic.Int32

	mu   sync.Mutex
	conn rabbitmq.Connection
}

type Option func(*Consumer)

// WithDialer replaces the amqp091-go dialer, mostly for tests.
func WithDialer(dial rabbitmq.Dialer) Option {
	return func(c *Consumer) {
		c.dial = dial
	}
}

// WithConsumerTag sets the tag prefix; each queue is consumed as "<tag>-<queue>".
func WithConsumerTag(tag string) Option {
	return func(c *Consumer) {
		c.consumerTag = tag
	}
}

// WithConnectRetries bounds the attempts made when opening the consuming and publishing connections.
func WithConnectRetries(maxRetries uint64, interval time.Duration) Option {
	return func(c *Consumer) {
		c.connectMaxRetries = maxRetries
		c.connectRetryInterval = interval
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// New builds a consumer. When cfg lacks host or credentials the consumer is inert:
// Enabled reports false and Run returns errval.ErrNotConfigured.
func New(cfg *MqConfig, handler MessageHandler, opts ...Option) *Consumer {
	c := &Consumer{
		cfg:                  cfg,
		handler:              handler,
		dial:                 rabbitmq.Dial,
		connectMaxRetries:    DefaultConnectMaxRetries,
		connectRetryInterval: DefaultConnectRetryInterval,
		logger:               slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.handler == nil {
		c.handler = HandlerFunc(func(context.Context, Message, Publisher) {})
	}

	if cfg.Complete() {
		c.url = cfg.URI()
	} else {
		c.logger.Warn("RabbitMQ configuration is incomplete, consumer is disabled")
	}

	return c
}

func (c *Consumer) Enabled() bool {
	return c.url != ""
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Ready reports whether the consumer has declared its topology and is receiving messages.
func (c *Consumer) Ready() bool {
	s := c.State()
	return s == StateConsuming || s == StateHandling
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// IsHealthy reports whether the consuming connection is open and can still open channels.
func (c *Consumer) IsHealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return rabbitmq.IsHealthy(c.conn)
}

func (c *Consumer) setConn(conn rabbitmq.Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
}

type queuedDelivery struct {
	queue string
	amqp.Delivery
}

// Run declares the topology and consumes until ctx is cancelled (returns nil) or the broker
// closes the delivery streams (returns errval.ErrConnectionClosed). The producer handed to
// the handler is closed once Run is over.
func (c *Consumer) Run(ctx context.Context) (err error) {
	if !c.Enabled() {
		return errval.ErrNotConfigured
	}

	err = c.cfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", errval.ErrInvalidConfig, err)
	}

	c.setState(StateDeclaring)
	defer c.setState(StateClosed)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := connect(runCtx, c.dial, c.url, c.connectMaxRetries, c.connectRetryInterval, c.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := rabbitmq.OpenChannel(conn)
	if err != nil {
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		err2 := ch.Close()
		if err2 != nil {
			c.logger.Error("error occurred while closing channel", "error", err2.Error())
		}

		err2 = conn.Close()
		if err2 != nil {
			c.logger.Error("error occurred while closing connection", "error", err2.Error())
		}
	}()

	deliveries, err := c.declare(runCtx, ch)
	if err != nil {
		return err
	}

	producer := NewProducer(c.url,
		WithProducerDialer(c.dial),
		WithProducerRetries(c.connectMaxRetries, c.connectRetryInterval),
		WithProducerLogger(c.logger),
	)
	defer func() {
		err2 := producer.Close()
		if err2 != nil {
			c.logger.Error("error occurred while closing producer", "error", err2.Error())
		}
	}()

	c.setState(StateConsuming)
	c.logger.Info("Consumer is running", "exchange", c.cfg.Exchange, "queues", c.cfg.QueueNames())

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer is shutting down", "exchange", c.cfg.Exchange)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Delivery channels are closed", "exchange", c.cfg.Exchange)
				return errval.ErrConnectionClosed
			}

			err = c.handle(runCtx, d, producer)
			if err != nil {
				return err
			}
		}
	}
}

// declare sets up the exchange, queues, bindings and QoS, then consumes every queue and
// funnels the deliveries into a single stream.
func (c *Consumer) declare(ctx context.Context, ch rabbitmq.Channel) (<-chan queuedDelivery, error) {
	c.logger.Debug("Declaring exchange", "exchange", c.cfg.Exchange)
	err := rabbitmq.DeclareTopicExchange(ch, c.cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
	}

	queueNames := c.cfg.QueueNames()
	for _, queueName := range queueNames {
		c.logger.Debug("Declaring queue", "queue", queueName)
		err = rabbitmq.DeclareBoundQueue(ch, c.cfg.Exchange, queueName, c.cfg.Queues[queueName])
		if err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}
	}

	err = ch.Qos(
		1,    // prefetch count
		0,    // prefetch size
		true, // global
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	merged := make(chan queuedDelivery)
	var g errgroup.Group
	for _, queueName := range queueNames {
		consumerTag := ""
		if c.consumerTag != "" {
			consumerTag = c.consumerTag + "-" + queueName
		}

		msgs, err := ch.ConsumeWithContext(
			ctx,
			queueName,   // queue
			consumerTag, // consumer
			false,       // auto-ack
			false,       // exclusive
			false,       // no-local
			false,       // no-wait
			nil,         // args
		)
		if err != nil {
			return nil, fmt.Errorf("failed to consume queue %s: %w", queueName, err)
		}

		queueName := queueName
		g.Go(func() error {
			for d := range msgs {
				select {
				case merged <- queuedDelivery{queue: queueName, Delivery: d}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			return nil
		})
	}

	go func() {
		err := g.Wait()
		if err != nil {
			c.logger.Debug("Delivery forwarding stopped", "error", err.Error())
		}
		close(merged)
	}()

	return merged, nil
}

func (c *Consumer) handle(ctx context.Context, d queuedDelivery, producer *Producer) error {
	msg := Message{
		Body:          d.Body,
		RoutingKey:    d.RoutingKey,
		Exchange:      d.Exchange,
		Queue:         d.queue,
		CorrelationID: d.CorrelationId,
		ReplyTo:       d.ReplyTo,
		ContentType:   d.ContentType,
		MessageID:     d.MessageId,
		Headers:       d.Headers,
		Timestamp:     d.Timestamp,
	}

	err := d.Ack(false)
	if err != nil {
		return fmt.Errorf("failed to ack message %d from %s: %w", d.DeliveryTag, d.queue, err)
	}
	metrics.MessagesConsumed.WithLabelValues(c.cfg.Exchange, d.queue).Inc()

	c.setState(StateHandling)
	defer c.setState(StateConsuming)

	start := time.Now()
	c.handler.HandleMessage(ctx, msg, producer)
	metrics.MessageHandlingDuration.WithLabelValues(d.queue).Observe(time.Since(start).Seconds())

	return nil
}

func connect(ctx context.Context, dial rabbitmq.Dialer, url string, maxRetries uint64, interval time.Duration, logger *slog.Logger) (rabbitmq.Connection, error) {
	var conn rabbitmq.Connection
	err := backoff.Retry(func() error {
		var err error
		conn, err = dial(url)
		if err != nil {
			logger.ErrorContext(ctx, "failed to connect to rabbitmq.. retrying...", "error", err)
			return err
		}

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxRetries), ctx))
	if err != nil {
		return nil, err
	}

	return conn, nil
}
