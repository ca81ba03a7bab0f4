package player

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// VirtualPlayer is a clock-driven Player for headless clients.
// State changes are queued and read with Events.
type VirtualPlayer struct {
	clock clock.Clock

	mu       sync.Mutex
	playing  bool
	position float64
	since    time.Time
	remote   bool
	pending  []VideoState
	notify   chan struct{}
}

func NewVirtualPlayer(clock clock.Clock) *VirtualPlayer {
	return &VirtualPlayer{
		clock:  clock,
		notify: make(chan struct{}, 1),
	}
}

// Notify fires when new state changes are queued.
func (p *VirtualPlayer) Notify() <-chan struct{} {
	return p.notify
}

// Events drains queued state changes in order.
func (p *VirtualPlayer) Events() []VideoState {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.pending
	p.pending = nil
	return events
}

func (p *VirtualPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil
	}
	p.playing = true
	p.since = p.clock.Now()
	p.emitLocked(StatePlaying)

	return nil
}

func (p *VirtualPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return nil
	}
	p.position = p.currentLocked()
	p.playing = false
	p.emitLocked(StatePaused)

	return nil
}

func (p *VirtualPlayer) SetCurrentTime(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.position = max(t, 0)
	p.since = p.clock.Now()

	p.emitLocked(StateSeeking)
	if p.playing {
		p.emitLocked(StatePlaying)
	} else {
		p.emitLocked(StatePaused)
	}
}

func (p *VirtualPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.currentLocked()
}

func (p *VirtualPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playing
}

func (p *VirtualPlayer) SetRemoteStream(remote bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.remote = remote
}

func (p *VirtualPlayer) IsRemoteStream() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.remote
}

func (p *VirtualPlayer) currentLocked() float64 {
	if !p.playing {
		return p.position
	}

	return p.position + p.clock.Since(p.since).Seconds()
}

func (p *VirtualPlayer) emitLocked(state VideoState) {
	p.pending = append(p.pending, state)

	select {
	case p.notify <- struct{}{}:
	default:
	}
}
