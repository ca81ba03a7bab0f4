package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/pkg/ctxlogger"
	"github.com/tvmate/server/pkg/wsrouter"
)

func (c *controller) loggerWSMw() wsrouter.Middleware[domain.Message] {
	return func(next wsrouter.HandlerFunc[domain.Message]) wsrouter.HandlerFunc[domain.Message] {
		return func(ctx context.Context, msg domain.Message) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, msg)

			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
			)

			return err
		}
	}
}

func (c *controller) metricsWSMw() wsrouter.Middleware[domain.Message] {
	return func(next wsrouter.HandlerFunc[domain.Message]) wsrouter.HandlerFunc[domain.Message] {
		return func(ctx context.Context, msg domain.Message) error {
			if err := next(ctx, msg); err != nil {
				return err
			}

			c.metrics.MessageRelayed(msg.Type())
			return nil
		}
	}
}
