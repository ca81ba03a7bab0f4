package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tvmate/server/internal/service/room"
	"github.com/tvmate/server/pkg/rest"
)

func (c *controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	info, err := c.roomService.RoomInfo(roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomDoesntExist) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get room info", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": info})
}
