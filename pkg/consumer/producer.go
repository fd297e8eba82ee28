package consumer

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sf7293/sfm-utils/internal/domain"
	"github.com/sf7293/sfm-utils/internal/errval"
	"github.com/sf7293/sfm-utils/internal/metrics"
	"github.com/sf7293/sfm-utils/internal/rabbitmq"
	"log/slog"
	"time"
)

type ProducerState int32

const (
	ProducerNone ProducerState = iota
	ProducerConnecting
	ProducerOpen
	ProducerClosed
)

func (s ProducerState) String() string {
	switch s {
	case ProducerNone:
		return "none"
	case ProducerConnecting:
		return "connecting"
	case ProducerOpen:
		return "open"
	case ProducerClosed:
		return "closed"
	default:
		return fmt.Sprintf("producer_state(%d)", int32(s))
	}
}

// Producer publishes over its own connection, opened on the first Publish and kept until Close.
// It is owned by a single goroutine: the consumer's handler loop, or a standalone caller.
type Producer struct {
	url           string
	dial          rabbitmq.Dialer
	maxRetries    uint64
	retryInterval time.Duration
	logger        *slog.Logger
	newMessageID  func() string
	now           func() time.Time

	state ProducerState
	conn  rabbitmq.Connection
	ch    rabbitmq.Channel
}

type ProducerOption func(*Producer)

func WithProducerDialer(dial rabbitmq.Dialer) ProducerOption {
	return func(p *Producer) {
		p.dial = dial
	}
}

func WithProducerRetries(maxRetries uint64, interval time.Duration) ProducerOption {
	return func(p *Producer) {
		p.maxRetries = maxRetries
		p.retryInterval = interval
	}
}

func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithClock replaces the message id generator and the timestamp source.
func WithClock(newMessageID func() string, now func() time.Time) ProducerOption {
	return func(p *Producer) {
		p.newMessageID = newMessageID
		p.now = now
	}
}

func NewProducer(url string, opts ...ProducerOption) *Producer {
	p := &Producer{
		url:           url,
		dial:          rabbitmq.Dial,
		maxRetries:    DefaultConnectMaxRetries,
		retryInterval: DefaultConnectRetryInterval,
		logger:        slog.Default(),
		newMessageID:  uuid.NewString,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Producer) State() ProducerState {
	return p.state
}

func (p *Producer) IsOpen() bool {
	return p.state == ProducerOpen
}

func (p *Producer) open(ctx context.Context) error {
	switch p.state {
	case ProducerOpen:
		return nil
	case ProducerClosed:
		return errval.ErrProducerClosed
	}

	p.state = ProducerConnecting
	conn, err := connect(ctx, p.dial, p.url, p.maxRetries, p.retryInterval, p.logger)
	if err != nil {
		p.state = ProducerNone
		return fmt.Errorf("failed to open producer connection: %w", err)
	}

	ch, err := rabbitmq.OpenChannel(conn)
	if err != nil {
		p.state = ProducerNone
		return fmt.Errorf("failed to open producer channel: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.state = ProducerOpen
	metrics.ProducerConnections.Inc()
	p.logger.Debug("Producer connection is open")

	return nil
}

// Publish sends body to exchange with routingKey, opening the connection first if needed.
func (p *Producer) Publish(ctx context.Context, body []byte, exchange, routingKey string, opts ...PublishOption) error {
	err := p.open(ctx)
	if err != nil {
		return err
	}

	o := domain.PublishOptions{ContentType: "text/plain"}
	for _, opt := range opts {
		opt(&o)
	}

	deliveryMode := amqp.Transient
	if o.Persistent {
		deliveryMode = amqp.Persistent
	}

	err = p.ch.PublishWithContext(
		ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			Headers:       o.Headers,
			ContentType:   o.ContentType,
			DeliveryMode:  deliveryMode,
			CorrelationId: o.CorrelationID,
			ReplyTo:       o.ReplyTo,
			MessageId:     p.newMessageID(),
			Timestamp:     p.now(),
			Body:          body,
		})
	if err != nil {
		metrics.MessagesPublished.WithLabelValues(exchange, "failed").Inc()
		return fmt.Errorf("failed to publish to %q with routing key %q: %w", exchange, routingKey, err)
	}

	metrics.MessagesPublished.WithLabelValues(exchange, "ok").Inc()
	return nil
}

// Close tears the connection down. Only the first call does any work.
func (p *Producer) Close() error {
	if p.state == ProducerClosed {
		return nil
	}

	wasOpen := p.state == ProducerOpen
	p.state = ProducerClosed
	if !wasOpen {
		return nil
	}

	metrics.ProducerConnections.Dec()
	err := p.ch.Close()
	if err != nil {
		p.logger.Error("error occurred while closing producer channel", "error", err.Error())
	}

	err = p.conn.Close()
	p.conn = nil
	p.ch = nil

	return err
}
