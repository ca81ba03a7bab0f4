package room

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tvmate/server/internal/domain"
)

type Room struct {
	ID           string
	PlayerStatus domain.PlayerStatus
	members      []*Member
}

// Users returns the membership in join order.
func (r *Room) Users() []domain.UserMeta {
	users := make([]domain.UserMeta, 0, len(r.members))
	for _, m := range r.members {
		users = append(users, m.meta())
	}

	return users
}

func (r *Room) Member(id uuid.UUID) (*Member, bool) {
	for _, m := range r.members {
		if m.id == id {
			return m, true
		}
	}

	return nil, false
}

func (r *Room) Len() int {
	return len(r.members)
}

// Host is the longest-standing member.
func (r *Room) Host() (*Member, bool) {
	if len(r.members) == 0 {
		return nil, false
	}

	return r.members[0], true
}

func normalizeRoomID(roomID string) string {
	return strings.ToLower(roomID)
}

type CreateRoomParams struct {
	Member *Member
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (domain.RoomJoinInfo, error) {
	rtcConfig, err := s.rtcIssuer.Issue(params.Member.name)
	if err != nil {
		return domain.RoomJoinInfo{}, fmt.Errorf("failed to issue rtc config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, err := s.generateRoomID()
	if err != nil {
		return domain.RoomJoinInfo{}, err
	}

	room := &Room{
		ID:           roomID,
		PlayerStatus: domain.Paused(0),
		members:      []*Member{params.Member},
	}
	s.rooms[roomID] = room
	s.roomsChanged()

	s.logger.InfoContext(ctx, "room created", "room_id", roomID, "user_id", params.Member.id)

	return domain.RoomJoinInfo{
		RoomID:       roomID,
		UserID:       params.Member.id,
		Users:        room.Users(),
		PlayerStatus: room.PlayerStatus,
		RtcConfig:    rtcConfig,
	}, nil
}

// generateRoomID must be called with mu held.
func (s *service) generateRoomID() (string, error) {
	for range roomIDGenerateAttempts {
		roomID := normalizeRoomID(s.generator.GenerateRandomString(domain.RoomIDLength))
		if _, exists := s.rooms[roomID]; !exists {
			return roomID, nil
		}
	}

	return "", ErrKeyGenerationFailed
}

type JoinRoomParams struct {
	RoomID string
	Member *Member
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (domain.RoomJoinInfo, error) {
	roomID := normalizeRoomID(params.RoomID)

	rtcConfig, err := s.rtcIssuer.Issue(params.Member.name)
	if err != nil {
		return domain.RoomJoinInfo{}, fmt.Errorf("failed to issue rtc config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return domain.RoomJoinInfo{}, ErrRoomDoesntExist
	}
	if room.Len() >= s.membersLimit {
		return domain.RoomJoinInfo{}, ErrRoomFull
	}

	room.members = append(room.members, params.Member)

	s.logger.InfoContext(ctx, "user joined room", "room_id", roomID, "user_id", params.Member.id, "users", room.Len())

	return domain.RoomJoinInfo{
		RoomID:       roomID,
		UserID:       params.Member.id,
		Users:        room.Users(),
		PlayerStatus: room.PlayerStatus,
		RtcConfig:    rtcConfig,
	}, nil
}

type RemoveUserResponse struct {
	Users        []domain.UserMeta
	PlayerStatus domain.PlayerStatus
	RoomDeleted  bool
}

// RemoveUser detaches the user and closes its member handle. ok is false when
// the user was not in the room, in which case nothing changes.
func (s *service) RemoveUser(roomID string, userID uuid.UUID) (RemoveUserResponse, bool) {
	roomID = normalizeRoomID(roomID)

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return RemoveUserResponse{}, false
	}

	idx := slices.IndexFunc(room.members, func(m *Member) bool { return m.id == userID })
	if idx < 0 {
		return RemoveUserResponse{}, false
	}

	room.members[idx].close()
	room.members = slices.Delete(room.members, idx, idx+1)

	resp := RemoveUserResponse{
		Users:        room.Users(),
		PlayerStatus: room.PlayerStatus,
	}

	if room.Len() == 0 {
		delete(s.rooms, roomID)
		s.roomsChanged()
		resp.RoomDeleted = true
		s.logger.Info("room deleted", "room_id", roomID)
	}

	return resp, true
}

// WithRoom runs fn under the read lock. It reports false if the room is absent.
func (s *service) WithRoom(roomID string, fn func(*Room)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[normalizeRoomID(roomID)]
	if !ok {
		return false
	}

	fn(room)
	return true
}

// WithRoomMut runs fn under the write lock. It reports false if the room is absent.
func (s *service) WithRoomMut(roomID string, fn func(*Room)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[normalizeRoomID(roomID)]
	if !ok {
		return false
	}

	fn(room)
	return true
}

func (s *service) RoomInfo(roomID string) (domain.RoomMetaInfo, error) {
	var info domain.RoomMetaInfo
	ok := s.WithRoom(roomID, func(r *Room) {
		info.RoomID = r.ID
		info.UsersCount = r.Len()
		if host, ok := r.Host(); ok {
			info.HostName = host.name
			info.SelectedVideo = host.state.VideoName
		}
	})
	if !ok {
		return domain.RoomMetaInfo{}, ErrRoomDoesntExist
	}

	return info, nil
}

func (s *service) RoomsCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}
