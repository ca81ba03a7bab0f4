package room

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tvmate/server/internal/domain"
)

const mailboxSize = 10

var ErrMemberGone = errors.New("member left the room")

// Member is a registry handle for one connected user. The session owning it
// drains Mailbox and stops when Done is closed.
type Member struct {
	id   uuid.UUID
	name string
	// guarded by the registry lock
	state domain.UserState

	mailbox   chan domain.Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewMember(name string) *Member {
	return &Member{
		id:      uuid.New(),
		name:    name,
		state:   domain.VideoNotSelected(),
		mailbox: make(chan domain.Message, mailboxSize),
		done:    make(chan struct{}),
	}
}

func (m *Member) ID() uuid.UUID {
	return m.id
}

func (m *Member) Name() string {
	return m.name
}

func (m *Member) Mailbox() <-chan domain.Message {
	return m.mailbox
}

func (m *Member) Done() <-chan struct{} {
	return m.done
}

func (m *Member) meta() domain.UserMeta {
	return domain.UserMeta{
		ID:    m.id,
		Name:  m.name,
		State: m.state,
	}
}

// deliver blocks until msg is queued, the member is removed or ctx is done.
func (m *Member) deliver(ctx context.Context, msg domain.Message) error {
	select {
	case <-m.done:
		return ErrMemberGone
	default:
	}

	select {
	case m.mailbox <- msg:
		return nil
	case <-m.done:
		return ErrMemberGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Member) close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}
