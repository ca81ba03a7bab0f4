package controller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/internal/protocol"
	"github.com/tvmate/server/internal/service/room"
)

var errMemberRemoved = errors.New("member removed from room")

// serveSession relays between conn and the registry until either side ends.
// The reader goroutine feeds inbound frames to the registry and may block on
// other members' mailboxes; this goroutine owns every write to conn and keeps
// draining the member's own mailbox meanwhile.
func (c *controller) serveSession(ctx context.Context, conn *websocket.Conn, roomId string, member *room.Member) {
	c.metrics.SessionOpened()
	defer c.metrics.SessionClosed()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readDone := make(chan error, 1)
	go func() {
		readDone <- c.readLoop(ctx, conn, member.ID())
	}()

	readFinished, err := c.writeLoop(ctx, conn, member, readDone)
	c.logger.InfoContext(ctx, "session ended", "reason", err)

	cancel()
	c.closeConn(ctx, conn, websocket.CloseNormalClosure, "")
	if !readFinished {
		<-readDone
	}

	resp, ok := c.roomService.RemoveUser(roomId, member.ID())
	if !ok || resp.RoomDeleted {
		return
	}

	leaveCtx, leaveCancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeWait)
	defer leaveCancel()

	if err := c.roomService.BroadcastExcluding(leaveCtx, roomId, domain.ServerMessage(domain.UserLeft{
		UserLeft:     member.ID(),
		Users:        resp.Users,
		PlayerStatus: resp.PlayerStatus,
	}), member.ID()); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast user left", "error", err)
	}
}

func (c *controller) readLoop(ctx context.Context, conn *websocket.Conn, userId uuid.UUID) error {
	conn.SetReadLimit(defaultMaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if messageType != websocket.BinaryMessage {
			c.logger.DebugContext(ctx, "ignoring non-binary frame", "type", messageType)
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.metrics.DecodeFailed()
			c.logger.WarnContext(ctx, "failed to decode message", "error", err)
			continue
		}

		if msg.Payload.Kind().IsServer() {
			c.logger.WarnContext(ctx, "ignoring server message from client", "kind", msg.Type())
			continue
		}

		if msg.From != userId {
			if msg.From != uuid.Nil {
				c.logger.WarnContext(ctx, "sender id mismatch", "claimed", msg.From)
			}
			msg.From = userId
		}

		if err := c.wsmux.Serve(ctx, msg); err != nil {
			c.logger.WarnContext(ctx, "failed to handle message", "kind", msg.Type(), "error", err)
		}
	}
}

// writeLoop reports whether readDone was consumed and why the session ended.
func (c *controller) writeLoop(ctx context.Context, conn *websocket.Conn, member *room.Member, readDone <-chan error) (bool, error) {
	pingTicker := time.NewTicker(c.pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case err := <-readDone:
			return true, err
		case <-member.Done():
			return false, errMemberRemoved
		case msg := <-member.Mailbox():
			if err := c.writeMessage(conn, msg); err != nil {
				c.logger.WarnContext(ctx, "failed to write message", "kind", msg.Type(), "error", err)
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				c.logger.DebugContext(ctx, "failed to send ping", "error", err)
			}
		}
	}
}
