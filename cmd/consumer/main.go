package main

import (
	"context"
	"github.com/sf7293/sfm-utils/configs"
	"github.com/sf7293/sfm-utils/internal/metrics"
	"github.com/sf7293/sfm-utils/internal/server"
	"github.com/sf7293/sfm-utils/pkg/consumer"
	"github.com/sf7293/sfm-utils/pkg/dispatch"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	cfg := configs.InitConfig()
	metrics.InitMetrics()

	// The consumer and the health server stop on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := dispatch.NewRouter().
		Handle("#.ping", newPingHandler()).
		Fallback(consumer.HandlerFunc(logMessage))

	c := consumer.New(cfg.RabbitMQ.ToMqConfig(), router,
		consumer.WithConsumerTag(cfg.RabbitMQ.ConsumerTag),
		consumer.WithConnectRetries(cfg.RabbitMQ.PublishMaxRetries, cfg.RabbitMQ.PublishRetryInterval()),
	)
	if !c.Enabled() {
		log.Fatal("RabbitMQ is not configured, RABBIT_HOST, RABBIT_USERNAME and RABBIT_PASSWORD must be set")
	}

	// Running HTTP Server in order to have liveness and readiness HTTP APIs
	go func() {
		err := server.ListenAndServe(ctx, cfg.ServerPort, server.NewRouter(c))
		if err != nil {
			slog.Error("Health server stopped with an error", "error", err.Error())
		}
	}()

	slog.Info("Consumer is starting. To exit press CTRL+C", "exchange", cfg.RabbitMQ.Exchange, "queues", cfg.RabbitMQ.Queues.String())
	err := c.Run(ctx)
	if err != nil {
		log.Fatalf("Consumer stopped: %v", err)
	}
	slog.Info("Consumer has shut down")
}
