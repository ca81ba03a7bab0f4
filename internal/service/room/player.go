package room

import (
	"github.com/google/uuid"
	"github.com/tvmate/server/internal/domain"
)

func (s *service) PlayerStatus(roomID string) (domain.PlayerStatus, error) {
	var status domain.PlayerStatus
	if !s.WithRoom(roomID, func(r *Room) { status = r.PlayerStatus }) {
		return domain.PlayerStatus{}, ErrRoomDoesntExist
	}

	return status, nil
}

// UpdatePlayerStatus applies a Play, Pause, Seek or Update payload to the room.
// Any member may move the position; the last write wins.
func (s *service) UpdatePlayerStatus(roomID string, payload domain.Payload) (domain.PlayerStatus, error) {
	var status domain.PlayerStatus
	ok := s.WithRoomMut(roomID, func(r *Room) {
		r.PlayerStatus = domain.ApplyToStatus(r.PlayerStatus, payload)
		status = r.PlayerStatus
	})
	if !ok {
		return domain.PlayerStatus{}, ErrRoomDoesntExist
	}

	return status, nil
}

func (s *service) SelectVideo(roomID string, userID uuid.UUID, name string) error {
	var found bool
	ok := s.WithRoomMut(roomID, func(r *Room) {
		m, exists := r.Member(userID)
		if !exists {
			return
		}
		found = true
		m.state = domain.VideoSelected(name)
	})
	if !ok {
		return ErrRoomDoesntExist
	}
	if !found {
		return ErrUserNotFound
	}

	return nil
}
