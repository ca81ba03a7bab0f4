package controller

import (
	"context"
	"fmt"

	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/pkg/wsrouter"
)

func (c *controller) initWSRouter() *wsrouter.WSRouter[domain.Message] {
	mux := wsrouter.New[domain.Message]()
	mux.Use(c.loggerWSMw(), c.metricsWSMw())

	for _, kind := range []domain.Kind{domain.KindPlay, domain.KindPause, domain.KindSeek, domain.KindUpdate} {
		mux.Handle(string(kind), c.handlePlayerMessage)
	}
	mux.Handle(string(domain.KindSelectedVideo), c.handleSelectedVideo)
	mux.Handle(string(domain.KindChat), c.handleChat)

	mux.Handle(string(domain.KindSendSessionDesc), c.handleSendSessionDesc)
	mux.Handle(string(domain.KindReceivedSessionDesc), c.handleReceivedSessionDesc)
	mux.Handle(string(domain.KindExchangeCandidate), c.handleExchangeCandidate)
	mux.Handle(string(domain.KindRequestCall), c.handleRequestCall)
	mux.Handle(string(domain.KindRequestVideoShare), c.handleRequestVideoShare)

	return mux
}

// Room-wide messages go back to every member, the sender included.

func (c *controller) handlePlayerMessage(ctx context.Context, msg domain.Message) error {
	roomId := c.getRoomIdFromCtx(ctx)

	if _, err := c.roomService.UpdatePlayerStatus(roomId, msg.Payload); err != nil {
		return fmt.Errorf("failed to update player status: %w", err)
	}

	return c.roomService.BroadcastExcluding(ctx, roomId, msg)
}

func (c *controller) handleSelectedVideo(ctx context.Context, msg domain.Message) error {
	roomId := c.getRoomIdFromCtx(ctx)
	payload := msg.Payload.(domain.SelectedVideo)

	if err := c.roomService.SelectVideo(roomId, msg.From, payload.Name); err != nil {
		return fmt.Errorf("failed to select video: %w", err)
	}

	return c.roomService.BroadcastExcluding(ctx, roomId, msg)
}

func (c *controller) handleChat(ctx context.Context, msg domain.Message) error {
	return c.roomService.BroadcastExcluding(ctx, c.getRoomIdFromCtx(ctx), msg)
}
