package dispatch

import (
	"context"
	"github.com/sf7293/sfm-utils/internal/domain"
	"github.com/sf7293/sfm-utils/internal/rabbitmq"
	"log/slog"
)

type route struct {
	pattern string
	handler domain.MessageHandler
}

// Router is a MessageHandler that hands each message to the first handler whose
// topic pattern matches the routing key, in registration order.
type Router struct {
	routes   []route
	fallback domain.MessageHandler
}

func NewRouter() *Router {
	return &Router{}
}

func (r *Router) Handle(pattern string, handler domain.MessageHandler) *Router {
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
	return r
}

func (r *Router) HandleFunc(pattern string, handler domain.HandlerFunc) *Router {
	return r.Handle(pattern, handler)
}

// Fallback handles messages no pattern matched. Without one they are logged and dropped.
func (r *Router) Fallback(handler domain.MessageHandler) *Router {
	r.fallback = handler
	return r
}

// Route returns the handler for routingKey, or nil.
func (r *Router) Route(routingKey string) domain.MessageHandler {
	for _, rt := range r.routes {
		if rabbitmq.MatchTopic(rt.pattern, routingKey) {
			return rt.handler
		}
	}

	return r.fallback
}

func (r *Router) HandleMessage(ctx context.Context, msg domain.Message, producer domain.Publisher) {
	handler := r.Route(msg.RoutingKey)
	if handler == nil {
		slog.WarnContext(ctx, "No handler for routing key, dropping message", "routing_key", msg.RoutingKey, "queue", msg.Queue)
		return
	}

	handler.HandleMessage(ctx, msg, producer)
}
