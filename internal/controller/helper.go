package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/internal/protocol"
)

func (c *controller) writeMessage(conn *websocket.Conn, msg domain.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (c *controller) closeConn(ctx context.Context, conn *websocket.Conn, code int, reason string) {
	if err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(closeWriteWait),
	); err != nil && err != websocket.ErrCloseSent {
		c.logger.DebugContext(ctx, "failed to write close frame", "error", err)
	}

	if err := conn.Close(); err != nil {
		c.logger.DebugContext(ctx, "failed to close websocket connection", "error", err)
	}
}
