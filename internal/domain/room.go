package domain

import "github.com/google/uuid"

const (
	RoomIDLength = 6
	MembersLimit = 9
)

type UserState struct {
	VideoSelected bool   `json:"video_selected"`
	VideoName     string `json:"video_name,omitempty"`
}

func VideoNotSelected() UserState {
	return UserState{}
}

func VideoSelected(name string) UserState {
	return UserState{VideoSelected: true, VideoName: name}
}

type UserMeta struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	State UserState `json:"state"`
}

// RtcConfig is issued per join. TurnCreds expire at the timestamp encoded in TurnUser.
type RtcConfig struct {
	Stun      string `json:"stun"`
	Turn      string `json:"turn"`
	TurnUser  string `json:"turn_user"`
	TurnCreds string `json:"turn_creds"`
}

type RoomJoinInfo struct {
	RoomID       string       `json:"room_id"`
	UserID       uuid.UUID    `json:"user_id"`
	Users        []UserMeta   `json:"users"`
	PlayerStatus PlayerStatus `json:"player_status"`
	RtcConfig    RtcConfig    `json:"rtc_config"`
}

// RoomMetaInfo is the public summary of a room shown before joining.
type RoomMetaInfo struct {
	RoomID        string `json:"room_id"`
	HostName      string `json:"host_name"`
	SelectedVideo string `json:"selected_video,omitempty"`
	UsersCount    int    `json:"users_count"`
}

// FindUser returns the user with id, if present.
func FindUser(users []UserMeta, id uuid.UUID) (UserMeta, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}

	return UserMeta{}, false
}
