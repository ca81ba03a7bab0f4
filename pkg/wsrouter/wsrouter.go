package wsrouter

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownMessageType = errors.New("unknown message type")

// Message is anything that can be routed by its type name.
type Message interface {
	Type() string
}

type HandlerFunc[M Message] func(ctx context.Context, msg M) error

type Middleware[M Message] func(next HandlerFunc[M]) HandlerFunc[M]

type WSRouter[M Message] struct {
	routes      map[string]HandlerFunc[M]
	middlewares []Middleware[M]
}

func New[M Message]() *WSRouter[M] {
	return &WSRouter[M]{routes: make(map[string]HandlerFunc[M])}
}

// Use appends middlewares. They wrap handlers registered after the call.
func (r *WSRouter[M]) Use(mws ...Middleware[M]) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter[M]) Handle(messageType string, handler HandlerFunc[M]) {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	r.routes[messageType] = handler
}

func (r *WSRouter[M]) Serve(ctx context.Context, msg M) error {
	handler, ok := r.routes[msg.Type()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type())
	}

	return handler(context.WithValue(ctx, messageTypeKey, msg.Type()), msg)
}
