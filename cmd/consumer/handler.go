package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/sf7293/sfm-utils/pkg/consumer"
	"github.com/sf7293/sfm-utils/pkg/result"
	"log/slog"
	"time"
)

// pingHandler answers request/reply pings with a JSON result describing what it received.
type pingHandler struct {
	now func() time.Time
}

func newPingHandler() pingHandler {
	return pingHandler{now: time.Now}
}

func (h pingHandler) HandleMessage(ctx context.Context, msg consumer.Message, producer consumer.Publisher) {
	res := h.buildResult(msg)
	slog.InfoContext(ctx, "Ping is handled", "routing_key", msg.RoutingKey, "result", res.String())

	if msg.ReplyTo == "" {
		return
	}

	body, err := json.Marshal(res)
	if err != nil {
		slog.ErrorContext(ctx, "There was an error in marshalling ping result", "error", err.Error())
		return
	}

	err = msg.Reply(ctx, producer, body, consumer.WithContentType("application/json"))
	if err != nil {
		slog.ErrorContext(ctx, "Error occurred while replying to ping", "reply_to", msg.ReplyTo, "error", err.Error())
		return
	}
	slog.InfoContext(ctx, "Ping reply is published", "reply_to", msg.ReplyTo, "correlation_id", msg.CorrelationID)
}

func (h pingHandler) buildResult(msg consumer.Message) *result.Result {
	res := result.New(result.WithName("Ping"))
	res.Started = h.now()

	err := res.AddInfo("ping_received", fmt.Sprintf("%d bytes from queue %s with routing key %s", len(msg.Body), msg.Queue, msg.RoutingKey))
	if err != nil {
		slog.Error("Error while adding info to ping result", "error", err.Error())
	}

	if msg.ReplyTo == "" {
		err = res.AddWarning("no_reply_to", "ping has no reply_to, nothing will be sent back")
		if err != nil {
			slog.Error("Error while adding warning to ping result", "error", err.Error())
		}
	}
	if len(msg.Body) == 0 {
		res.Success = false
		err = res.AddError("empty_body", "ping body is empty")
		if err != nil {
			slog.Error("Error while adding error to ping result", "error", err.Error())
		}
	}

	res.Ended = h.now()
	return res
}

func logMessage(ctx context.Context, msg consumer.Message, producer consumer.Publisher) {
	slog.InfoContext(ctx, "Message is received",
		"routing_key", msg.RoutingKey,
		"queue", msg.Queue,
		"message_id", msg.MessageID,
		"bytes", len(msg.Body),
	)
}
