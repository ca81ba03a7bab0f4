package room

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tvmate/server/internal/domain"
	"github.com/tvmate/server/internal/protocol"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []domain.Message
	buffered int
	incoming chan []byte
	closed   chan struct{}
	closeErr error
	once     sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
		closeErr: io.EOF,
	}
}

func (t *fakeTransport) Send(b []byte) error {
	msg, err := protocol.Decode(b)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.sent = append(t.sent, msg)
	t.mu.Unlock()

	return nil
}

func (t *fakeTransport) Receive() ([]byte, error) {
	select {
	case b := <-t.incoming:
		return b, nil
	case <-t.closed:
		return nil, t.closeErr
	}
}

func (t *fakeTransport) BufferedAmount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.buffered
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) setBuffered(n int) {
	t.mu.Lock()
	t.buffered = n
	t.mu.Unlock()
}

func (t *fakeTransport) sentMessages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]domain.Message(nil), t.sent...)
}

func (t *fakeTransport) push(tb testing.TB, msg domain.Message) {
	tb.Helper()

	b, err := protocol.Encode(msg)
	require.NoError(tb, err)
	t.incoming <- b
}

type fakeDialer struct {
	transport *fakeTransport
	err       error
	urls      []string
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Transport, error) {
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}

	return d.transport, nil
}

var (
	hostID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	guestID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func joinInfo() domain.RoomJoinInfo {
	return domain.RoomJoinInfo{
		RoomID: "abc123",
		UserID: hostID,
		Users: []domain.UserMeta{
			{ID: hostID, Name: "alice", State: domain.VideoNotSelected()},
		},
		PlayerStatus: domain.Paused(0),
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeTransport, *fakeDialer, <-chan Event) {
	t.Helper()

	transport := newFakeTransport()
	dialer := &fakeDialer{transport: transport}
	m := NewManager("ws://localhost:8080/api/v1", dialer, slog.New(slog.NewTextHandler(io.Discard, nil)))

	events, unsubscribe := m.Subscribe(32)
	t.Cleanup(unsubscribe)
	t.Cleanup(func() { transport.Close() })

	return m, transport, dialer, events
}

func waitFor[E Event](t *testing.T, events <-chan Event) E {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if target, ok := e.(E); ok {
				return target
			}
		case <-timeout:
			var zero E
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func connect(t *testing.T) (*Manager, *fakeTransport, <-chan Event) {
	t.Helper()

	m, transport, _, events := newTestManager(t)
	require.NoError(t, m.HostJoin(context.Background(), "alice", ""))
	transport.push(t, domain.ServerMessage(domain.RoomCreated{Info: joinInfo()}))
	waitFor[RoomUpdatedEvent](t, events)

	return m, transport, events
}

func TestHostJoinEndpoints(t *testing.T) {
	m, _, dialer, _ := newTestManager(t)

	require.NoError(t, m.HostJoin(context.Background(), "alice smith", ""))
	assert.Equal(t, "ws://localhost:8080/api/v1/ws/host?name=alice+smith", dialer.urls[0])

	m2, _, dialer2, _ := newTestManager(t)
	require.NoError(t, m2.HostJoin(context.Background(), "bob", "ABC123"))
	assert.Equal(t, "ws://localhost:8080/api/v1/ws/join?name=bob&room_id=ABC123", dialer2.urls[0])
}

func TestHostJoinWhileConnecting(t *testing.T) {
	m, _, _, events := newTestManager(t)

	require.NoError(t, m.HostJoin(context.Background(), "alice", ""))
	assert.Equal(t, StateConnecting, waitFor[StateChangedEvent](t, events).State)

	err := m.HostJoin(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrAlreadyConnectedToRoom)
}

func TestHostJoinDialFailure(t *testing.T) {
	m, _, dialer, _ := newTestManager(t)
	dialer.err = errors.New("connection refused")

	err := m.HostJoin(context.Background(), "alice", "")
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, m.State())

	dialer.err = nil
	assert.NoError(t, m.HostJoin(context.Background(), "alice", ""))
}

func TestRoomCreatedConnects(t *testing.T) {
	m, _, _ := connect(t)

	assert.Equal(t, StateConnected, m.State())

	info, ok := m.RoomInfo()
	require.True(t, ok)
	assert.Equal(t, "abc123", info.ID)
	assert.Equal(t, hostID, info.UserID)
	assert.Len(t, info.Users, 1)
	assert.Empty(t, m.ChatHistory())
}

func TestSendRequiresConnection(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	err := m.SendMessage(domain.Play{Time: 1}, Reliable)
	assert.ErrorIs(t, err, ErrNotConnectedToRoom)

	require.NoError(t, m.HostJoin(context.Background(), "alice", ""))
	err = m.SendChat("hi")
	assert.ErrorIs(t, err, ErrNotConnectedToRoom)
}

func TestUnreliableDroppedUnderBackpressure(t *testing.T) {
	m, transport, _ := connect(t)

	transport.setBuffered(5)
	require.NoError(t, m.SendMessage(domain.Update{Time: 10}, Unreliable))
	assert.Empty(t, transport.sentMessages())

	require.NoError(t, m.SendMessage(domain.Pause{Time: 10}, Reliable))
	sent := transport.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.Pause{Time: 10}, sent[0].Payload)
	assert.Equal(t, hostID, sent[0].From)

	transport.setBuffered(4)
	require.NoError(t, m.SendMessage(domain.Update{Time: 11}, Unreliable))
	assert.Len(t, transport.sentMessages(), 2)
}

func TestMembershipReplacesSnapshot(t *testing.T) {
	m, transport, events := connect(t)

	users := []domain.UserMeta{
		{ID: hostID, Name: "alice"},
		{ID: guestID, Name: "bob"},
	}
	transport.push(t, domain.ServerMessage(domain.UserJoined{
		NewUser:      guestID,
		Users:        users,
		PlayerStatus: domain.Playing(30),
	}))

	updated := waitFor[RoomUpdatedEvent](t, events)
	assert.Equal(t, users, updated.Room.Users)
	assert.Equal(t, domain.Playing(30), updated.Room.PlayerStatus)

	transport.push(t, domain.ServerMessage(domain.UserLeft{
		UserLeft:     guestID,
		Users:        users[:1],
		PlayerStatus: domain.Paused(31),
	}))

	updated = waitFor[RoomUpdatedEvent](t, events)
	assert.Len(t, updated.Room.Users, 1)

	info, _ := m.RoomInfo()
	assert.Equal(t, domain.Paused(31), info.PlayerStatus)
}

func TestPlayerMessages(t *testing.T) {
	m, transport, events := connect(t)

	// own echo updates the snapshot only
	transport.push(t, domain.ClientMessage(hostID, domain.Play{Time: 5}))
	transport.push(t, domain.ClientMessage(guestID, domain.Pause{Time: 8}))

	event := waitFor[PlayerMessageEvent](t, events)
	assert.Equal(t, guestID, event.From)
	assert.Equal(t, domain.Pause{Time: 8}, event.Payload)

	info, _ := m.RoomInfo()
	assert.Equal(t, domain.Paused(8), info.PlayerStatus)
}

func TestChatAndSignaling(t *testing.T) {
	m, transport, events := connect(t)

	transport.push(t, domain.ClientMessage(hostID, domain.Chat{Text: "hello"}))
	chat := waitFor[ChatEvent](t, events)
	assert.Equal(t, "alice", chat.Message.Name)
	assert.Equal(t, "hello", chat.Message.Text)
	assert.Len(t, m.ChatHistory(), 1)

	transport.push(t, domain.ClientMessage(guestID, domain.RequestCall{Peer: guestID, Video: true}))
	signal := waitFor[SignalEvent](t, events)
	assert.Equal(t, guestID, signal.From)
	assert.IsType(t, domain.RequestCall{}, signal.Payload)

	transport.push(t, domain.ServerMessage(domain.Error{Message: "slow down"}))
	assert.Equal(t, "slow down", waitFor[NotificationEvent](t, events).Message)
}

func TestCloseClearsSnapshot(t *testing.T) {
	m, transport, events := connect(t)

	transport.closeErr = &websocket.CloseError{Code: websocket.ClosePolicyViolation, Text: "room doesn't exist"}
	require.NoError(t, m.Leave())

	assert.Equal(t, "room doesn't exist", waitFor[NotificationEvent](t, events).Message)
	assert.Equal(t, StateDisconnected, waitFor[StateChangedEvent](t, events).State)

	_, ok := m.RoomInfo()
	assert.False(t, ok)
	assert.Nil(t, m.ChatHistory())
	assert.ErrorIs(t, m.Leave(), ErrNotConnectedToRoom)
}

func TestMessagesIgnoredBeforeAck(t *testing.T) {
	m, transport, _, events := newTestManager(t)
	require.NoError(t, m.HostJoin(context.Background(), "bob", "abc123"))

	transport.push(t, domain.ClientMessage(hostID, domain.Chat{Text: "early"}))
	info := joinInfo()
	info.UserID = guestID
	transport.push(t, domain.ServerMessage(domain.RoomJoined{Info: info}))

	waitFor[RoomUpdatedEvent](t, events)
	assert.Empty(t, m.ChatHistory())

	got, _ := m.RoomInfo()
	assert.Equal(t, guestID, got.UserID)
}

func TestStalledSubscriberDoesNotBlockReceive(t *testing.T) {
	m, transport, events := connect(t)

	// never read
	_, unsubscribe := m.Subscribe(0)
	t.Cleanup(unsubscribe)

	for i := range 100 {
		transport.push(t, domain.ClientMessage(guestID, domain.Update{Time: float64(i)}))
	}

	for i := range 100 {
		event := waitFor[PlayerMessageEvent](t, events)
		assert.Equal(t, domain.Update{Time: float64(i)}, event.Payload)
	}

	info, _ := m.RoomInfo()
	assert.Equal(t, domain.Paused(99), info.PlayerStatus)
}
