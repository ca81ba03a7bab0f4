package room

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tvmate/server/internal/domain"
)

type seqGenerator struct {
	codes []string
	calls int
}

func (g *seqGenerator) GenerateRandomString(int) string {
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code
}

type fakeMetrics struct {
	rooms int
}

func (m *fakeMetrics) SetRooms(n int) { m.rooms = n }

func newTestService(t *testing.T, gen iGenerator, membersLimit int) (*service, *fakeMetrics) {
	t.Helper()

	issuer := NewRtcIssuer(&RtcIssuerConfig{
		StunURL: "stun:stun.example.org:3478",
		TurnURL: "turn:turn.example.org:3478",
		Secret:  func() string { return "topsecret" },
		Clock:   clock.NewMock(),
	})
	m := &fakeMetrics{}

	return NewService(issuer, m, slog.Default(), &Config{
		MembersLimit: membersLimit,
		Generator:    gen,
	}), m
}

func recv(t *testing.T, m *Member) domain.Message {
	t.Helper()

	select {
	case msg := <-m.Mailbox():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", m.name)
		return domain.Message{}
	}
}

func assertEmpty(t *testing.T, m *Member) {
	t.Helper()

	select {
	case msg := <-m.Mailbox():
		t.Fatalf("unexpected message for %s: %s", m.name, msg.Type())
	default:
	}
}

func TestCreateRoom(t *testing.T) {
	s, metrics := newTestService(t, nil, 9)
	ctx := context.Background()

	host := NewMember("host")
	info, err := s.CreateRoom(ctx, &CreateRoomParams{Member: host})
	require.NoError(t, err)

	assert.Len(t, info.RoomID, domain.RoomIDLength)
	assert.Equal(t, strings.ToLower(info.RoomID), info.RoomID)
	assert.Equal(t, host.ID(), info.UserID)
	assert.Equal(t, []domain.UserMeta{{ID: host.ID(), Name: "host"}}, info.Users)
	assert.Equal(t, domain.Paused(0), info.PlayerStatus)
	assert.NotEmpty(t, info.RtcConfig.TurnCreds)
	assert.True(t, strings.HasSuffix(info.RtcConfig.TurnUser, ":host"))
	assert.Equal(t, 1, metrics.rooms)
}

func TestCreateRoomKeyGenerationFailed(t *testing.T) {
	gen := &seqGenerator{codes: []string{"AAAAAA"}}
	s, _ := newTestService(t, gen, 9)
	ctx := context.Background()

	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("first")})
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("second")})
	assert.ErrorIs(t, err, ErrKeyGenerationFailed)
	assert.Equal(t, 1+roomIDGenerateAttempts, gen.calls, "no sixth attempt")
	assert.Equal(t, 1, s.RoomsCount())
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	gen := &seqGenerator{codes: []string{"aaaaaa", "aaaaaa", "aaaaaa", "bbbbbb"}}
	s, _ := newTestService(t, gen, 9)
	ctx := context.Background()

	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("first")})
	require.NoError(t, err)

	info, err := s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("second")})
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", info.RoomID)
}

func TestJoinRoom(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	host := NewMember("host")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: host})
	require.NoError(t, err)

	guest := NewMember("guest")
	info, err := s.JoinRoom(ctx, &JoinRoomParams{RoomID: "AB12CD", Member: guest})
	require.NoError(t, err)

	assert.Equal(t, "ab12cd", info.RoomID)
	assert.Equal(t, guest.ID(), info.UserID)

	var registryUsers []domain.UserMeta
	require.True(t, s.WithRoom("ab12cd", func(r *Room) { registryUsers = r.Users() }))
	assert.Equal(t, registryUsers, info.Users)

	count := 0
	for _, u := range info.Users {
		if u.ID == guest.ID() {
			count++
		}
	}
	assert.Equal(t, 1, count, "joining user must appear exactly once")
}

func TestJoinRoomErrors(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 2)
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomID: "zzzzzz", Member: NewMember("guest")})
	assert.ErrorIs(t, err, ErrRoomDoesntExist)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("host")})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: NewMember("guest")})
	require.NoError(t, err)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: NewMember("third")})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRoomIssuanceFailureAborts(t *testing.T) {
	secret := "topsecret"
	issuer := NewRtcIssuer(&RtcIssuerConfig{
		Secret: func() string { return secret },
		Clock:  clock.NewMock(),
	})
	s := NewService(issuer, nil, slog.Default(), &Config{
		MembersLimit: 9,
		Generator:    &seqGenerator{codes: []string{"ab12cd"}},
	})
	ctx := context.Background()

	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("host")})
	require.NoError(t, err)

	secret = ""
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: NewMember("guest")})
	require.ErrorIs(t, err, ErrMissingTurnSecret)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{Member: NewMember("other")})
	require.ErrorIs(t, err, ErrMissingTurnSecret)

	info, err := s.RoomInfo("ab12cd")
	require.NoError(t, err)
	assert.Equal(t, 1, info.UsersCount)
	assert.Equal(t, 1, s.RoomsCount())
}

func TestRemoveUser(t *testing.T) {
	s, metrics := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	host := NewMember("host")
	guest := NewMember("guest")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: host})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: guest})
	require.NoError(t, err)

	t.Run("absent user is a no-op", func(t *testing.T) {
		_, ok := s.RemoveUser("ab12cd", uuid.New())
		assert.False(t, ok)
		_, ok = s.RemoveUser("nope00", host.ID())
		assert.False(t, ok)

		info, err := s.RoomInfo("ab12cd")
		require.NoError(t, err)
		assert.Equal(t, 2, info.UsersCount)
	})

	t.Run("remove host", func(t *testing.T) {
		resp, ok := s.RemoveUser("AB12CD", host.ID())
		require.True(t, ok)
		assert.False(t, resp.RoomDeleted)
		assert.Equal(t, []domain.UserMeta{{ID: guest.ID(), Name: "guest"}}, resp.Users)

		select {
		case <-host.Done():
		default:
			t.Fatal("removed member must be closed")
		}

		info, err := s.RoomInfo("ab12cd")
		require.NoError(t, err)
		assert.Equal(t, "guest", info.HostName, "next member becomes host")
	})

	t.Run("last user deletes room", func(t *testing.T) {
		resp, ok := s.RemoveUser("ab12cd", guest.ID())
		require.True(t, ok)
		assert.True(t, resp.RoomDeleted)
		assert.Empty(t, resp.Users)
		assert.Equal(t, 0, metrics.rooms)

		_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: NewMember("late")})
		assert.ErrorIs(t, err, ErrRoomDoesntExist)
	})
}

func TestBroadcastExcluding(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	a, b, c := NewMember("a"), NewMember("b"), NewMember("c")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: a})
	require.NoError(t, err)
	for _, m := range []*Member{b, c} {
		_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: m})
		require.NoError(t, err)
	}

	msg := domain.ClientMessage(a.ID(), domain.Chat{Text: "hi"})

	require.NoError(t, s.BroadcastExcluding(ctx, "ab12cd", msg, a.ID()))
	assert.Equal(t, msg, recv(t, b))
	assert.Equal(t, msg, recv(t, c))
	assertEmpty(t, a)

	require.NoError(t, s.BroadcastExcluding(ctx, "ab12cd", msg))
	for _, m := range []*Member{a, b, c} {
		assert.Equal(t, msg, recv(t, m))
	}

	require.NoError(t, s.BroadcastExcluding(ctx, "ab12cd", msg, a.ID(), b.ID(), c.ID()))
	for _, m := range []*Member{a, b, c} {
		assertEmpty(t, m)
	}

	assert.ErrorIs(t, s.BroadcastExcluding(ctx, "zzzzzz", msg), ErrRoomDoesntExist)
}

func TestBroadcastBlockedRecipientDoesNotAffectOthers(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	fast, slow := NewMember("fast"), NewMember("slow")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: fast})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: slow})
	require.NoError(t, err)

	for range mailboxSize {
		slow.mailbox <- domain.ServerMessage(domain.Error{Message: "filler"})
	}

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	msg := domain.ClientMessage(fast.ID(), domain.Play{Time: 1})
	require.NoError(t, s.BroadcastExcluding(ctx, "ab12cd", msg))
	assert.Equal(t, msg, recv(t, fast))
}

func TestBroadcastToRemovedMemberReturns(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	m := NewMember("gone")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: m})
	require.NoError(t, err)

	for range mailboxSize {
		m.mailbox <- domain.ServerMessage(domain.Error{Message: "filler"})
	}
	m.close()

	assert.ErrorIs(t, m.deliver(ctx, domain.ServerMessage(domain.Error{})), ErrMemberGone)
}

func TestSendTo(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	a, b := NewMember("a"), NewMember("b")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: a})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomID: "ab12cd", Member: b})
	require.NoError(t, err)

	msg := domain.ClientMessage(a.ID(), domain.RequestVideoShare{Peer: a.ID()})
	require.NoError(t, s.SendTo(ctx, "ab12cd", b.ID(), msg))
	assert.Equal(t, msg, recv(t, b))
	assertEmpty(t, a)

	assert.ErrorIs(t, s.SendTo(ctx, "ab12cd", uuid.New(), msg), ErrUserNotFound)
	assert.ErrorIs(t, s.SendTo(ctx, "zzzzzz", b.ID(), msg), ErrRoomDoesntExist)
}

func TestPlayerStatusAndSelectVideo(t *testing.T) {
	s, _ := newTestService(t, &seqGenerator{codes: []string{"ab12cd"}}, 9)
	ctx := context.Background()

	host := NewMember("host")
	_, err := s.CreateRoom(ctx, &CreateRoomParams{Member: host})
	require.NoError(t, err)

	status, err := s.UpdatePlayerStatus("ab12cd", domain.Play{Time: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.Playing(5), status)

	status, err = s.UpdatePlayerStatus("ab12cd", domain.Update{Time: 8})
	require.NoError(t, err)
	assert.Equal(t, domain.Playing(8), status)

	status, err = s.UpdatePlayerStatus("ab12cd", domain.Pause{Time: 9.5})
	require.NoError(t, err)
	assert.Equal(t, domain.Paused(9.5), status)

	got, err := s.PlayerStatus("AB12CD")
	require.NoError(t, err)
	assert.Equal(t, domain.Paused(9.5), got)

	require.NoError(t, s.SelectVideo("ab12cd", host.ID(), "movie.mkv"))
	assert.ErrorIs(t, s.SelectVideo("ab12cd", uuid.New(), "x"), ErrUserNotFound)

	info, err := s.RoomInfo("ab12cd")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomMetaInfo{
		RoomID:        "ab12cd",
		HostName:      "host",
		SelectedVideo: "movie.mkv",
		UsersCount:    1,
	}, info)

	_, err = s.UpdatePlayerStatus("zzzzzz", domain.Play{})
	assert.ErrorIs(t, err, ErrRoomDoesntExist)
}
