package errval

import (
	"errors"
)

var (
	ErrNotConfigured    = errors.New("rabbitmq is not configured")
	ErrInvalidConfig    = errors.New("invalid rabbitmq configuration")
	ErrConnectionClosed = errors.New("rabbitmq connection closed")
	ErrProducerClosed   = errors.New("producer is closed")
	ErrEmptyCode        = errors.New("msg code is empty")
	ErrEmptyMessage     = errors.New("msg message is empty")
	ErrNoReplyTo        = errors.New("message has no reply_to")
)
