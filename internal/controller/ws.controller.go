package controller

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/internal/service/room"
	"github.com/tvmate/server/pkg/rest"
)

type hostQuery struct {
	Name string `json:"name" validate:"required,max=32,printascii"`
}

type joinQuery struct {
	Name   string `json:"name" validate:"required,max=32,printascii"`
	RoomId string `json:"room_id" validate:"required,len=6,alphanum"`
}

func (c *controller) hostRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := hostQuery{Name: r.URL.Query().Get("name")}
	if validationErrors, ok := c.validate.Validate(q); !ok {
		c.logger.DebugContext(ctx, "invalid host request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	member := room.NewMember(q.Name)
	info, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{Member: member})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to create room", "error", err)
		c.metrics.JoinFailed(failureReason(err))
		rest.WriteJSON(w, errorStatus(err), rest.Envelope{"error": err.Error()})
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		c.roomService.RemoveUser(info.RoomID, member.ID())
		return
	}

	ctx = c.sessionCtx(ctx, info.RoomID, member.ID())
	if err := c.writeMessage(conn, domain.ServerMessage(domain.RoomCreated{Info: info})); err != nil {
		c.logger.WarnContext(ctx, "failed to write room created", "error", err)
	}

	c.serveSession(ctx, conn, info.RoomID, member)
}

func (c *controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := joinQuery{
		Name:   r.URL.Query().Get("name"),
		RoomId: r.URL.Query().Get("room_id"),
	}
	if validationErrors, ok := c.validate.Validate(q); !ok {
		c.logger.DebugContext(ctx, "invalid join request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	member := room.NewMember(q.Name)
	info, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{RoomID: q.RoomId, Member: member})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to join room", "room_id", q.RoomId, "error", err)
		c.metrics.JoinFailed(failureReason(err))

		// clients learn the reason from the close frame
		conn, upgradeErr := c.upgrader.Upgrade(w, r, nil)
		if upgradeErr != nil {
			c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", upgradeErr)
			return
		}
		c.closeConn(ctx, conn, websocket.ClosePolicyViolation, err.Error())
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		c.roomService.RemoveUser(info.RoomID, member.ID())
		return
	}

	ctx = c.sessionCtx(ctx, info.RoomID, member.ID())
	if err := c.writeMessage(conn, domain.ServerMessage(domain.RoomJoined{Info: info})); err != nil {
		c.logger.WarnContext(ctx, "failed to write room joined", "error", err)
	}

	if err := c.roomService.BroadcastExcluding(ctx, info.RoomID, domain.ServerMessage(domain.UserJoined{
		NewUser:      member.ID(),
		Users:        info.Users,
		PlayerStatus: info.PlayerStatus,
	}), member.ID()); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast user joined", "error", err)
	}

	c.serveSession(ctx, conn, info.RoomID, member)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomDoesntExist), errors.Is(err, room.ErrRoomFull):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomDoesntExist):
		return "room_doesnt_exist"
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrKeyGenerationFailed):
		return "key_generation"
	case errors.Is(err, room.ErrMissingTurnSecret):
		return "rtc_config"
	default:
		return "internal"
	}
}
