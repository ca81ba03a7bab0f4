package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tvmate/server/internal/domain"
)

const callRequestLimitedMessage = "Cant send vc request, Try after some time"

// Signaling payloads are delivered to one peer only and are never inspected.

func (c *controller) sendToPeer(ctx context.Context, to uuid.UUID, msg domain.Message) error {
	if err := c.roomService.SendTo(ctx, c.getRoomIdFromCtx(ctx), to, msg); err != nil {
		return fmt.Errorf("failed to relay %s: %w", msg.Type(), err)
	}

	return nil
}

func (c *controller) handleSendSessionDesc(ctx context.Context, msg domain.Message) error {
	payload := msg.Payload.(domain.SendSessionDesc)

	return c.sendToPeer(ctx, payload.To, domain.ClientMessage(msg.From, domain.ReceivedSessionDesc{
		Desc: payload.Desc,
	}))
}

func (c *controller) handleReceivedSessionDesc(ctx context.Context, _ domain.Message) error {
	c.logger.WarnContext(ctx, "client sent a server-routed session description, dropping")
	return nil
}

func (c *controller) handleExchangeCandidate(ctx context.Context, msg domain.Message) error {
	payload := msg.Payload.(domain.ExchangeCandidate)

	return c.sendToPeer(ctx, payload.Peer, domain.ClientMessage(msg.From, domain.ExchangeCandidate{
		Peer:      msg.From,
		Candidate: payload.Candidate,
	}))
}

func (c *controller) handleRequestCall(ctx context.Context, msg domain.Message) error {
	payload := msg.Payload.(domain.RequestCall)

	allowed, err := c.cooldown.Acquire(ctx, "call:"+msg.From.String())
	if err != nil {
		// a broken cooldown store must not block calls
		c.logger.WarnContext(ctx, "failed to check call request cooldown", "error", err)
		allowed = true
	}

	if !allowed {
		return c.sendToPeer(ctx, msg.From, domain.ServerMessage(domain.Error{
			Message: callRequestLimitedMessage,
		}))
	}

	return c.sendToPeer(ctx, payload.Peer, domain.ClientMessage(msg.From, domain.RequestCall{
		Peer:  msg.From,
		Video: payload.Video,
		Audio: payload.Audio,
	}))
}

func (c *controller) handleRequestVideoShare(ctx context.Context, msg domain.Message) error {
	payload := msg.Payload.(domain.RequestVideoShare)

	return c.sendToPeer(ctx, payload.Peer, domain.ClientMessage(msg.From, domain.RequestVideoShare{
		Peer: msg.From,
	}))
}
