package controller

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tvmate/server/pkg/ctxlogger"
)

type contextKey int

const (
	roomIdCtxKey contextKey = iota
)

func (c *controller) sessionCtx(ctx context.Context, roomId string, userId uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", userId.String()))

	return ctx
}

func (c *controller) getRoomIdFromCtx(ctx context.Context) string {
	roomId, ok := ctx.Value(roomIdCtxKey).(string)
	if !ok {
		return ""
	}

	return roomId
}
