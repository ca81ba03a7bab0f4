package domain

import "github.com/google/uuid"

type Kind string

const (
	KindRoomCreated Kind = "room_created"
	KindRoomJoined  Kind = "room_joined"
	KindUserJoined  Kind = "user_joined"
	KindUserLeft    Kind = "user_left"
	KindError       Kind = "error"

	KindSelectedVideo       Kind = "selected_video"
	KindPlay                Kind = "play"
	KindPause               Kind = "pause"
	KindSeek                Kind = "seek"
	KindUpdate              Kind = "update"
	KindChat                Kind = "chat"
	KindSendSessionDesc     Kind = "send_session_desc"
	KindReceivedSessionDesc Kind = "received_session_desc"
	KindExchangeCandidate   Kind = "exchange_candidate"
	KindRequestCall         Kind = "request_call"
	KindRequestVideoShare   Kind = "request_video_share"
)

// IsServer reports whether k is a room lifecycle event only the server may originate.
func (k Kind) IsServer() bool {
	switch k {
	case KindRoomCreated, KindRoomJoined, KindUserJoined, KindUserLeft, KindError:
		return true
	default:
		return false
	}
}

// IsPlayer reports whether k moves the room playback position.
func (k Kind) IsPlayer() bool {
	switch k {
	case KindPlay, KindPause, KindSeek, KindUpdate:
		return true
	default:
		return false
	}
}

// IsSignaling reports whether k is routed to a single peer.
func (k Kind) IsSignaling() bool {
	switch k {
	case KindSendSessionDesc, KindReceivedSessionDesc, KindExchangeCandidate, KindRequestCall, KindRequestVideoShare:
		return true
	default:
		return false
	}
}

type Payload interface {
	Kind() Kind
}

// Message is the wire envelope. From is uuid.Nil for server events.
type Message struct {
	From    uuid.UUID
	Payload Payload
}

func (m Message) Type() string {
	if m.Payload == nil {
		return ""
	}

	return string(m.Payload.Kind())
}

func ServerMessage(p Payload) Message {
	return Message{Payload: p}
}

func ClientMessage(from uuid.UUID, p Payload) Message {
	return Message{From: from, Payload: p}
}

type RoomCreated struct {
	Info RoomJoinInfo `json:"info"`
}

type RoomJoined struct {
	Info RoomJoinInfo `json:"info"`
}

type UserJoined struct {
	NewUser      uuid.UUID    `json:"new_user"`
	Users        []UserMeta   `json:"users"`
	PlayerStatus PlayerStatus `json:"player_status"`
}

type UserLeft struct {
	UserLeft     uuid.UUID    `json:"user_left"`
	Users        []UserMeta   `json:"users"`
	PlayerStatus PlayerStatus `json:"player_status"`
}

type Error struct {
	Message string `json:"message"`
}

type SelectedVideo struct {
	Name string `json:"name"`
}

type Play struct {
	Time float64 `json:"time"`
}

type Pause struct {
	Time float64 `json:"time"`
}

type Seek struct {
	Time       float64 `json:"time"`
	WasPlaying bool    `json:"was_playing"`
}

type Update struct {
	Time float64 `json:"time"`
}

type Chat struct {
	Text string `json:"text"`
}

// SessionDesc and IceCandidate are opaque to the server.
type SessionDesc struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type IceCandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdp_mline_index,omitempty"`
	UsernameFragment *string `json:"username_fragment,omitempty"`
}

type SendSessionDesc struct {
	To   uuid.UUID   `json:"to"`
	Desc SessionDesc `json:"desc"`
}

type ReceivedSessionDesc struct {
	Desc SessionDesc `json:"desc"`
}

// ExchangeCandidate carries the destination when sent by a client and the origin when delivered.
type ExchangeCandidate struct {
	Peer      uuid.UUID    `json:"peer"`
	Candidate IceCandidate `json:"candidate"`
}

type RequestCall struct {
	Peer  uuid.UUID `json:"peer"`
	Video bool      `json:"video"`
	Audio bool      `json:"audio"`
}

type RequestVideoShare struct {
	Peer uuid.UUID `json:"peer"`
}

func (RoomCreated) Kind() Kind         { return KindRoomCreated }
func (RoomJoined) Kind() Kind          { return KindRoomJoined }
func (UserJoined) Kind() Kind          { return KindUserJoined }
func (UserLeft) Kind() Kind            { return KindUserLeft }
func (Error) Kind() Kind               { return KindError }
func (SelectedVideo) Kind() Kind       { return KindSelectedVideo }
func (Play) Kind() Kind                { return KindPlay }
func (Pause) Kind() Kind               { return KindPause }
func (Seek) Kind() Kind                { return KindSeek }
func (Update) Kind() Kind              { return KindUpdate }
func (Chat) Kind() Kind                { return KindChat }
func (SendSessionDesc) Kind() Kind     { return KindSendSessionDesc }
func (ReceivedSessionDesc) Kind() Kind { return KindReceivedSessionDesc }
func (ExchangeCandidate) Kind() Kind   { return KindExchangeCandidate }
func (RequestCall) Kind() Kind         { return KindRequestCall }
func (RequestVideoShare) Kind() Kind   { return KindRequestVideoShare }

// PlayerTime returns the position carried by a playback payload.
func PlayerTime(p Payload) (float64, bool) {
	switch p := p.(type) {
	case Play:
		return p.Time, true
	case Pause:
		return p.Time, true
	case Seek:
		return p.Time, true
	case Update:
		return p.Time, true
	default:
		return 0, false
	}
}

// ApplyToStatus returns the room status after p was received.
func ApplyToStatus(status PlayerStatus, p Payload) PlayerStatus {
	switch p := p.(type) {
	case Play:
		return Playing(p.Time)
	case Pause:
		return Paused(p.Time)
	case Seek:
		return status.WithTime(p.Time)
	case Update:
		return status.WithTime(p.Time)
	default:
		return status
	}
}
