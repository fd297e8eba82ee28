// Package mocks provides an in-memory broker that satisfies the rabbitmq interfaces.
// It keeps just enough AMQP semantics for tests: declarations, topic bindings,
// per-channel prefetch and acknowledgments.
package mocks

import (
	"context"
	"errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sf7293/sfm-utils/internal/rabbitmq"
	"sync"
)

var ErrChannelClosed = errors.New("mock channel is closed")

type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

type QosCall struct {
	PrefetchCount int
	PrefetchSize  int
	Global        bool
}

type Published struct {
	Exchange   string
	RoutingKey string
	Msg        amqp.Publishing
}

type Exchange struct {
	Kind    string
	Durable bool
}

type Queue struct {
	Durable bool
}

type Broker struct {
	mu sync.Mutex

	exchanges     map[string]Exchange
	queues        map[string]Queue
	queueOrder    []string
	bindings      []Binding
	pending       map[string][]amqp.Delivery
	connections   []*Connection
	published     []Published
	acked         []uint64
	nextTag       uint64
	failDials     int
	dials         int
	dialURLs      []string
	ExchangeErr   error
	QueueErr      error
	BindErr       error
	QosErr        error
	ConsumeErr    error
	AckErr        error
	PublishErr    error
	DialErr       error
	ChannelErr    error
	consumerOrder []*Channel
}

func NewBroker() *Broker {
	return &Broker{
		exchanges: map[string]Exchange{},
		queues:    map[string]Queue{},
		pending:   map[string][]amqp.Delivery{},
	}
}

// FailNextDials makes the next n dials return DialErr (or a generic error).
func (b *Broker) FailNextDials(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failDials = n
}

func (b *Broker) Dial(url string) (rabbitmq.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	b.dialURLs = append(b.dialURLs, url)
	if b.failDials > 0 {
		b.failDials--
		if b.DialErr != nil {
			return nil, b.DialErr
		}
		return nil, errors.New("mock dial failure")
	}
	if b.DialErr != nil {
		return nil, b.DialErr
	}

	conn := &Connection{broker: b}
	b.connections = append(b.connections, conn)
	return conn, nil
}

// Enqueue places a message on queue as if it had been routed there with routingKey.
func (b *Broker) Enqueue(queue, exchange, routingKey string, msg amqp.Publishing) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enqueueLocked(queue, exchange, routingKey, msg)
	b.deliverLocked()
}

func (b *Broker) enqueueLocked(queue, exchange, routingKey string, msg amqp.Publishing) {
	b.nextTag++
	b.pending[queue] = append(b.pending[queue], amqp.Delivery{
		Acknowledger:  &acknowledger{broker: b},
		Headers:       msg.Headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  msg.DeliveryMode,
		CorrelationId: msg.CorrelationId,
		ReplyTo:       msg.ReplyTo,
		MessageId:     msg.MessageId,
		Timestamp:     msg.Timestamp,
		DeliveryTag:   b.nextTag,
		Exchange:      exchange,
		RoutingKey:    routingKey,
		Body:          msg.Body,
	})
}

// deliverLocked hands pending messages to consuming channels while their prefetch window allows.
func (b *Broker) deliverLocked() {
channels:
	for _, ch := range b.consumerOrder {
		if ch.closed {
			continue
		}
		for _, queue := range ch.consumedQueues {
			for len(b.pending[queue]) > 0 {
				if ch.prefetch > 0 && ch.unacked >= ch.prefetch {
					continue channels
				}
				d := b.pending[queue][0]
				b.pending[queue] = b.pending[queue][1:]
				d.ConsumerTag = ch.consumerTags[queue]
				ch.unacked++
				ch.inflight[d.DeliveryTag] = ch
				ch.deliveries[queue] <- d
			}
		}
	}
}

func (b *Broker) ack(tag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.AckErr != nil {
		return b.AckErr
	}

	for _, ch := range b.consumerOrder {
		if _, ok := ch.inflight[tag]; ok {
			delete(ch.inflight, tag)
			ch.unacked--
			break
		}
	}
	b.acked = append(b.acked, tag)
	b.deliverLocked()
	return nil
}

func (b *Broker) Exchanges() map[string]Exchange {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := map[string]Exchange{}
	for k, v := range b.exchanges {
		out[k] = v
	}
	return out
}

func (b *Broker) Queues() map[string]Queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := map[string]Queue{}
	for k, v := range b.queues {
		out[k] = v
	}
	return out
}

func (b *Broker) QueueOrder() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queueOrder...)
}

func (b *Broker) Bindings() []Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Binding(nil), b.bindings...)
}

func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

func (b *Broker) Acked() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint64(nil), b.acked...)
}

// Pending returns the number of messages on queue that have not been delivered yet.
func (b *Broker) Pending(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[queue])
}

func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *Broker) DialURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.dialURLs...)
}

func (b *Broker) Connections() []*Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Connection(nil), b.connections...)
}

// DropConnections simulates the broker going away: every open connection is closed.
func (b *Broker) DropConnections() {
	for _, conn := range b.Connections() {
		conn.drop()
	}
}

type Connection struct {
	broker   *Broker
	channels []*Channel
	closed   bool
	closes   int
}

func (c *Connection) Channel() (rabbitmq.Channel, error) {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ChannelErr != nil {
		return nil, b.ChannelErr
	}
	if c.closed {
		return nil, amqp.ErrClosed
	}

	ch := &Channel{
		broker:       b,
		conn:         c,
		deliveries:   map[string]chan amqp.Delivery{},
		consumerTags: map[string]string{},
		inflight:     map[uint64]*Channel{},
	}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *Connection) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

func (c *Connection) Close() error {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	c.closes++
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocked()
	}
	return nil
}

// Closes counts calls to Close, including ones made after the connection was already closed.
func (c *Connection) Closes() int {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closes
}

func (c *Connection) Channels() []*Channel {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return append([]*Channel(nil), c.channels...)
}

func (c *Connection) drop() {
	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocked()
	}
}

type Channel struct {
	broker         *Broker
	conn           *Connection
	qos            []QosCall
	prefetch       int
	unacked        int
	consumedQueues []string
	consumerTags   map[string]string
	deliveries     map[string]chan amqp.Delivery
	inflight       map[uint64]*Channel
	closed         bool
}

func (ch *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return ErrChannelClosed
	}
	if b.ExchangeErr != nil {
		return b.ExchangeErr
	}
	b.exchanges[name] = Exchange{Kind: kind, Durable: durable}
	return nil
}

func (ch *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return amqp.Queue{}, ErrChannelClosed
	}
	if b.QueueErr != nil {
		return amqp.Queue{}, b.QueueErr
	}
	if _, ok := b.queues[name]; !ok {
		b.queueOrder = append(b.queueOrder, name)
	}
	b.queues[name] = Queue{Durable: durable}
	return amqp.Queue{Name: name, Messages: len(b.pending[name])}, nil
}

func (ch *Channel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return ErrChannelClosed
	}
	if b.BindErr != nil {
		return b.BindErr
	}
	b.bindings = append(b.bindings, Binding{Queue: name, Exchange: exchange, RoutingKey: key})
	return nil
}

func (ch *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.QosErr != nil {
		return b.QosErr
	}
	ch.qos = append(ch.qos, QosCall{PrefetchCount: prefetchCount, PrefetchSize: prefetchSize, Global: global})
	ch.prefetch = prefetchCount
	return nil
}

func (ch *Channel) QosCalls() []QosCall {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	return append([]QosCall(nil), ch.qos...)
}

// ConsumedQueues lists the queues this channel consumes, in Consume call order.
func (ch *Channel) ConsumedQueues() []string {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	return append([]string(nil), ch.consumedQueues...)
}

func (ch *Channel) ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return nil, ErrChannelClosed
	}
	if b.ConsumeErr != nil {
		return nil, b.ConsumeErr
	}

	deliveries := make(chan amqp.Delivery, 128)
	ch.deliveries[queue] = deliveries
	ch.consumerTags[queue] = consumer
	ch.consumedQueues = append(ch.consumedQueues, queue)
	if len(ch.consumedQueues) == 1 {
		b.consumerOrder = append(b.consumerOrder, ch)
	}
	b.deliverLocked()
	return deliveries, nil
}

// PublishWithContext records the message and routes it to every queue bound to exchange
// with a matching topic pattern. The default exchange routes straight to the queue named by key.
func (ch *Channel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return ErrChannelClosed
	}
	if b.PublishErr != nil {
		return b.PublishErr
	}

	b.published = append(b.published, Published{Exchange: exchange, RoutingKey: key, Msg: msg})
	if exchange == "" {
		if _, ok := b.queues[key]; ok {
			b.enqueueLocked(key, exchange, key, msg)
		}
	} else {
		routed := map[string]bool{}
		for _, binding := range b.bindings {
			if binding.Exchange != exchange || routed[binding.Queue] {
				continue
			}
			if rabbitmq.MatchTopic(binding.RoutingKey, key) {
				routed[binding.Queue] = true
				b.enqueueLocked(binding.Queue, exchange, key, msg)
			}
		}
	}
	b.deliverLocked()
	return nil
}

func (ch *Channel) Close() error {
	b := ch.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.closed {
		return ErrChannelClosed
	}
	ch.closeLocked()
	return nil
}

func (ch *Channel) IsClosed() bool {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	return ch.closed
}

// closeLocked closes the delivery streams and forgets in-flight messages.
func (ch *Channel) closeLocked() {
	if ch.closed {
		return
	}
	ch.closed = true
	for _, deliveries := range ch.deliveries {
		close(deliveries)
	}
	ch.inflight = map[uint64]*Channel{}
	ch.unacked = 0
}

type acknowledger struct {
	broker *Broker
}

func (a *acknowledger) Ack(tag uint64, multiple bool) error {
	return a.broker.ack(tag)
}

func (a *acknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return a.broker.ack(tag)
}

func (a *acknowledger) Reject(tag uint64, requeue bool) error {
	return a.broker.ack(tag)
}
