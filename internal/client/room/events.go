package room

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tvmate/server/internal/domain"
)

type Event interface {
	isEvent()
}

type StateChangedEvent struct {
	State State
}

// RoomUpdatedEvent carries a fresh snapshot after any membership or status change.
type RoomUpdatedEvent struct {
	Room RoomInfo
}

// PlayerMessageEvent is a Play, Pause, Seek or Update sent by another member.
type PlayerMessageEvent struct {
	From    uuid.UUID
	Payload domain.Payload
}

type ChatEvent struct {
	Message ChatMessage
}

// SignalEvent is a peer-to-peer signaling payload addressed to this client.
type SignalEvent struct {
	From    uuid.UUID
	Payload domain.Payload
}

// NotificationEvent is a short user-facing message such as a server error.
type NotificationEvent struct {
	Message string
}

func (StateChangedEvent) isEvent()  {}
func (RoomUpdatedEvent) isEvent()   {}
func (PlayerMessageEvent) isEvent() {}
func (ChatEvent) isEvent()          {}
func (SignalEvent) isEvent()        {}
func (NotificationEvent) isEvent()  {}

// maxPendingEvents bounds the queue of a subscriber that stopped reading.
const maxPendingEvents = 1024

// subscriber queues published events and forwards them to ch from its own
// goroutine, so a slow reader never holds up the publisher.
type subscriber struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
}

func (s *subscriber) stop() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// enqueue returns false when the subscriber overflowed and was stopped.
func (s *subscriber) enqueue(events []Event) bool {
	s.mu.Lock()
	if len(s.pending)+len(events) > maxPendingEvents {
		s.mu.Unlock()
		s.stop()
		return false
	}
	s.pending = append(s.pending, events...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// forward closes ch once the subscriber is stopped.
func (s *subscriber) forward() {
	defer close(s.ch)

	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, e := range batch {
			select {
			case s.ch <- e:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

type bus struct {
	mu   sync.Mutex
	subs []*subscriber
}

func (b *bus) subscribe(buffer int) (<-chan Event, func()) {
	s := &subscriber{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go s.forward()

	unsubscribe := func() {
		s.stop()
		b.remove(s)
	}

	return s.ch, unsubscribe
}

func (b *bus) remove(s *subscriber) {
	b.mu.Lock()
	b.subs = slices.DeleteFunc(b.subs, func(other *subscriber) bool { return other == s })
	b.mu.Unlock()
}

// publish never blocks. A subscriber more than maxPendingEvents behind is
// dropped and its channel closed.
func (b *bus) publish(events ...Event) {
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if !s.enqueue(events) {
			b.remove(s)
		}
	}
}
