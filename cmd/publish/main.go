package main

import (
	"context"
	"github.com/sf7293/sfm-utils/configs"
	"github.com/sf7293/sfm-utils/pkg/consumer"
	"io"
	"log"
	"log/slog"
	"os"
	"time"
)

const publishTimeout = 30 * time.Second

// Publishes one message to the configured exchange:
//
//	publish <routing_key> <body|-> [reply_to]
//
// A body of "-" is read from stdin.
func main() {
	cfg := configs.InitConfig()
	args := os.Args
	if len(args) < 3 {
		log.Fatal("Insufficient arguments are provided in calling the command, usage: publish <routing_key> <body|-> [reply_to]")
		return
	}

	routingKey := args[1]
	body := []byte(args[2])
	if args[2] == "-" {
		var err error
		body, err = io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("Unable to read body from stdin: %v", err)
		}
	}

	var opts []consumer.PublishOption
	if len(args) > 3 {
		opts = append(opts, consumer.WithReplyTo(args[3]))
	}

	if !cfg.RabbitMQ.ToMqConfig().Complete() {
		log.Fatal("RabbitMQ is not configured, RABBIT_HOST, RABBIT_USERNAME and RABBIT_PASSWORD must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	producer := consumer.NewProducer(cfg.RabbitMQ.ToRabbitConnectionUri(),
		consumer.WithProducerRetries(cfg.RabbitMQ.PublishMaxRetries, cfg.RabbitMQ.PublishRetryInterval()),
	)

	err := publish(ctx, producer, body, cfg.RabbitMQ.Exchange, routingKey, opts...)
	if err != nil {
		cancel()
		os.Exit(1)
	}
}

// publish sends one message and always closes the producer. The caller exits non-zero on error.
func publish(ctx context.Context, producer *consumer.Producer, body []byte, exchange, routingKey string, opts ...consumer.PublishOption) error {
	defer func() {
		err := producer.Close()
		if err != nil {
			slog.Error("An error occurred while closing RabbitMQ connection", "error", err.Error())
		}
	}()

	slog.Info("Publishing message", "exchange", exchange, "routing_key", routingKey, "bytes", len(body))
	err := producer.Publish(ctx, body, exchange, routingKey, opts...)
	if err != nil {
		slog.Error("Error occurred while publishing message", "error", err.Error())
		return err
	}
	slog.Info("Message is published successfully", "exchange", exchange, "routing_key", routingKey)

	return nil
}
