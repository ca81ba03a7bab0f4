package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/internal/protocol"
)

// Unreliable messages are dropped while at least this many bytes wait in the transport.
const unreliableBufferThreshold = 5

var (
	ErrAlreadyConnectedToRoom = errors.New("already connected to a room")
	ErrNotConnectedToRoom     = errors.New("not connected to a room")
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type Reliability int

const (
	Reliable Reliability = iota
	Unreliable
)

type RoomInfo struct {
	ID           string
	UserID       uuid.UUID
	Users        []domain.UserMeta
	PlayerStatus domain.PlayerStatus
	RtcConfig    domain.RtcConfig
}

type ChatMessage struct {
	From uuid.UUID
	Name string
	Text string
}

// Manager owns the single server connection of a client.
type Manager struct {
	serverURL string
	dialer    Dialer
	logger    *slog.Logger
	bus       bus

	mu        sync.Mutex
	state     State
	transport Transport
	room      *RoomInfo
	chat      []ChatMessage
}

// NewManager takes the server API base, e.g. ws://localhost:8080/api/v1.
func NewManager(serverURL string, dialer Dialer, logger *slog.Logger) *Manager {
	return &Manager{
		serverURL: serverURL,
		dialer:    dialer,
		logger:    logger,
		state:     StateDisconnected,
	}
}

// Subscribe returns a channel receiving every event published after the call.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	return m.bus.subscribe(buffer)
}

// HostJoin creates a room when roomCode is empty and joins roomCode otherwise.
func (m *Manager) HostJoin(ctx context.Context, name, roomCode string) error {
	endpoint, err := m.endpoint(name, roomCode)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnectedToRoom
	}
	m.state = StateConnecting
	m.mu.Unlock()
	m.bus.publish(StateChangedEvent{State: StateConnecting})

	t, err := m.dialer.Dial(ctx, endpoint)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.bus.publish(StateChangedEvent{State: StateDisconnected})

		return fmt.Errorf("failed to connect: %w", err)
	}

	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()

	go m.receive(t)

	return nil
}

// Leave closes the connection. The state becomes disconnected once the receive loop observes it.
func (m *Manager) Leave() error {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()

	if t == nil {
		return ErrNotConnectedToRoom
	}

	return t.Close()
}

func (m *Manager) SendMessage(payload domain.Payload, reliability Reliability) error {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return ErrNotConnectedToRoom
	}
	t := m.transport
	from := m.room.UserID
	m.mu.Unlock()

	if reliability == Unreliable && t.BufferedAmount() >= unreliableBufferThreshold {
		m.logger.Debug("dropping unreliable message", "kind", payload.Kind(), "buffered", t.BufferedAmount())
		return nil
	}

	b, err := protocol.Encode(domain.ClientMessage(from, payload))
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := t.Send(b); err != nil {
		return fmt.Errorf("failed to send %s: %w", payload.Kind(), err)
	}

	return nil
}

func (m *Manager) SendChat(text string) error {
	return m.SendMessage(domain.Chat{Text: text}, Reliable)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Manager) RoomInfo() (RoomInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return RoomInfo{}, false
	}

	return m.room.clone(), true
}

func (m *Manager) ChatHistory() []ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.chat)
}

func (m *Manager) endpoint(name, roomCode string) (string, error) {
	u, err := url.Parse(m.serverURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %w", err)
	}

	query := url.Values{}
	query.Set("name", name)
	if roomCode == "" {
		u = u.JoinPath("ws", "host")
	} else {
		u = u.JoinPath("ws", "join")
		query.Set("room_id", roomCode)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (m *Manager) receive(t Transport) {
	for {
		b, err := t.Receive()
		if err != nil {
			m.closed(t, err)
			return
		}

		msg, err := protocol.Decode(b)
		if err != nil {
			m.logger.Warn("failed to decode server message", "error", err)
			continue
		}

		m.handleMessage(msg)
	}
}

func (m *Manager) closed(t Transport, err error) {
	m.mu.Lock()
	if m.transport != t {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.transport = nil
	m.room = nil
	m.chat = nil
	m.mu.Unlock()

	m.logger.Info("disconnected from room", "reason", err)

	var events []Event
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseNormalClosure && closeErr.Text != "" {
		events = append(events, NotificationEvent{Message: closeErr.Text})
	}
	m.bus.publish(append(events, StateChangedEvent{State: StateDisconnected})...)
}

func (m *Manager) handleMessage(msg domain.Message) {
	m.mu.Lock()
	var events []Event
	switch m.state {
	case StateConnecting:
		events = m.handleAckLocked(msg)
	case StateConnected:
		events = m.applyLocked(msg)
	default:
		m.logger.Debug("message received while disconnected", "kind", msg.Type())
	}
	m.mu.Unlock()

	m.bus.publish(events...)
}

func (m *Manager) handleAckLocked(msg domain.Message) []Event {
	var info domain.RoomJoinInfo
	switch p := msg.Payload.(type) {
	case domain.RoomCreated:
		info = p.Info
	case domain.RoomJoined:
		info = p.Info
	default:
		m.logger.Warn("unexpected message before room acknowledgement", "kind", msg.Type())
		return nil
	}

	m.state = StateConnected
	m.room = &RoomInfo{
		ID:           info.RoomID,
		UserID:       info.UserID,
		Users:        info.Users,
		PlayerStatus: info.PlayerStatus,
		RtcConfig:    info.RtcConfig,
	}
	m.chat = nil

	m.logger.Info("connected to room", "room_id", info.RoomID, "user_id", info.UserID)

	return []Event{
		StateChangedEvent{State: StateConnected},
		RoomUpdatedEvent{Room: m.room.clone()},
	}
}

func (m *Manager) applyLocked(msg domain.Message) []Event {
	switch p := msg.Payload.(type) {
	case domain.UserJoined:
		m.room.Users = p.Users
		m.room.PlayerStatus = p.PlayerStatus
		return []Event{RoomUpdatedEvent{Room: m.room.clone()}}

	case domain.UserLeft:
		m.room.Users = p.Users
		m.room.PlayerStatus = p.PlayerStatus
		return []Event{RoomUpdatedEvent{Room: m.room.clone()}}

	case domain.Error:
		return []Event{NotificationEvent{Message: p.Message}}

	case domain.SelectedVideo:
		for i := range m.room.Users {
			if m.room.Users[i].ID == msg.From {
				m.room.Users[i].State = domain.VideoSelected(p.Name)
			}
		}
		return []Event{RoomUpdatedEvent{Room: m.room.clone()}}

	case domain.Play, domain.Pause, domain.Seek, domain.Update:
		m.room.PlayerStatus = domain.ApplyToStatus(m.room.PlayerStatus, msg.Payload)
		if msg.From == m.room.UserID {
			return nil
		}
		return []Event{PlayerMessageEvent{From: msg.From, Payload: msg.Payload}}

	case domain.Chat:
		chatMsg := ChatMessage{From: msg.From, Text: p.Text}
		if user, ok := domain.FindUser(m.room.Users, msg.From); ok {
			chatMsg.Name = user.Name
		}
		m.chat = append(m.chat, chatMsg)
		return []Event{ChatEvent{Message: chatMsg}}

	case domain.ReceivedSessionDesc, domain.ExchangeCandidate, domain.RequestCall, domain.RequestVideoShare:
		return []Event{SignalEvent{From: msg.From, Payload: msg.Payload}}

	default:
		m.logger.Warn("unexpected message while connected", "kind", msg.Type())
		return nil
	}
}

func (r *RoomInfo) clone() RoomInfo {
	c := *r
	c.Users = slices.Clone(r.Users)
	return c
}
