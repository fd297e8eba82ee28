package domain

import (
	"context"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sf7293/sfm-utils/internal/errval"
	"time"
)

// Message is a delivery as seen by a handler. It is already acknowledged when the handler receives it.
type Message struct {
	Body          []byte
	RoutingKey    string
	Exchange      string
	Queue         string
	CorrelationID string
	ReplyTo       string
	ContentType   string
	MessageID     string
	Headers       amqp.Table
	Timestamp     time.Time
}

type PublishOptions struct {
	CorrelationID string
	ReplyTo       string
	ContentType   string
	Headers       amqp.Table
	Persistent    bool
}

type PublishOption func(*PublishOptions)

func WithCorrelationID(id string) PublishOption {
	return func(o *PublishOptions) {
		o.CorrelationID = id
	}
}

func WithReplyTo(replyTo string) PublishOption {
	return func(o *PublishOptions) {
		o.ReplyTo = replyTo
	}
}

func WithContentType(contentType string) PublishOption {
	return func(o *PublishOptions) {
		o.ContentType = contentType
	}
}

func WithHeaders(headers amqp.Table) PublishOption {
	return func(o *PublishOptions) {
		o.Headers = headers
	}
}

// WithPersistent marks the message for persistent delivery mode.
func WithPersistent() PublishOption {
	return func(o *PublishOptions) {
		o.Persistent = true
	}
}

type Publisher interface {
	Publish(ctx context.Context, body []byte, exchange, routingKey string, opts ...PublishOption) error
}

// MessageHandler is invoked once per delivery, after the delivery has been acknowledged.
// Errors are the handler's own business: nothing is redelivered.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message, producer Publisher)
}

type HandlerFunc func(ctx context.Context, msg Message, producer Publisher)

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message, producer Publisher) {
	f(ctx, msg, producer)
}

// Reply publishes body to the default exchange, routed to the message's reply_to queue
// and carrying its correlation id.
func (m Message) Reply(ctx context.Context, producer Publisher, body []byte, opts ...PublishOption) error {
	if m.ReplyTo == "" {
		return errval.ErrNoReplyTo
	}

	opts = append([]PublishOption{WithCorrelationID(m.CorrelationID)}, opts...)
	return producer.Publish(ctx, body, "", m.ReplyTo, opts...)
}
