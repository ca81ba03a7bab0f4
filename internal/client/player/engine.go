package player

import (
	"log/slog"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tvmate/server/internal/client/room"
	"github.com/tvmate/server/internal/domain"
)

const (
	updateInterval = 3000 * time.Millisecond
	// How long transitions caused by an applied remote command are attributed to it.
	settleTimeout = 2 * time.Second
	// Positions further apart than this many seconds are snapped to the room.
	driftThreshold = 15.0
)

type VideoState int

const (
	StatePaused VideoState = iota
	StatePlaying
	StateWaiting
	StateEnded
	StateErrored
	StateStalled
	StateSuspend
	StateSeeking
)

func (s VideoState) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateWaiting:
		return "waiting"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	case StateStalled:
		return "stalled"
	case StateSuspend:
		return "suspend"
	case StateSeeking:
		return "seeking"
	default:
		return "unknown"
	}
}

// IsPaused reports whether the player is not advancing.
func (s VideoState) IsPaused() bool {
	return s != StatePlaying
}

func (s VideoState) steady() bool {
	return s == StatePlaying || s == StatePaused
}

// Player is the local media element the engine drives.
type Player interface {
	Play() error
	Pause() error
	SetCurrentTime(t float64)
	CurrentTime() float64
	// IsRemoteStream is true when playback mirrors a peer's stream and cannot be seeked.
	IsRemoteStream() bool
}

type Sender interface {
	SendMessage(payload domain.Payload, reliability room.Reliability) error
}

// Engine keeps a local player in step with the room. It is not safe for concurrent use.
type Engine struct {
	player Player
	sender Sender
	clock  clock.Clock
	logger *slog.Logger

	state          VideoState
	roomStatus     domain.PlayerStatus
	applyingRemote bool
	resumeAfter    *bool
	lastUpdate     time.Time

	// state the player should settle in after an applied remote command
	expect         *VideoState
	expectDeadline time.Time
}

func NewEngine(player Player, sender Sender, clock clock.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		player: player,
		sender: sender,
		clock:  clock,
		logger: logger,
		state:  StatePaused,
	}
}

func (e *Engine) State() VideoState {
	return e.state
}

func (e *Engine) RoomStatus() domain.PlayerStatus {
	return e.roomStatus
}

// SetRoomStatus replaces the last known room status, e.g. from a join snapshot.
func (e *Engine) SetRoomStatus(status domain.PlayerStatus) {
	e.roomStatus = status
}

// OnStateChange handles a state transition reported by the local player.
// Transitions caused by an applied remote command and transitions out of
// seeking are never sent to the room.
func (e *Engine) OnStateChange(state VideoState) {
	prev := e.state
	e.state = state

	if state == StateSeeking || state == prev {
		return
	}

	settling := e.settle(state)

	if prev == StateSeeking {
		if e.resumeAfter != nil {
			resume := *e.resumeAfter
			e.resumeAfter = nil
			if resume && state != StatePlaying {
				e.applyRemote(func() error { return e.player.Play() })
			}
		}
		return
	}

	if settling || e.applyingRemote || !state.steady() {
		return
	}

	if state.IsPaused() == e.roomStatus.IsPaused() {
		return
	}

	t := e.player.CurrentTime()
	var payload domain.Payload
	if state == StatePlaying {
		payload = domain.Play{Time: t}
	} else {
		payload = domain.Pause{Time: t}
	}

	e.roomStatus = domain.ApplyToStatus(e.roomStatus, payload)
	e.send(payload, room.Reliable)
}

// settle reports whether state belongs to a remote command still being applied.
func (e *Engine) settle(state VideoState) bool {
	if e.expect == nil {
		return false
	}
	if e.clock.Now().After(e.expectDeadline) {
		e.expect = nil
		return false
	}
	if state == *e.expect {
		e.expect = nil
	}
	return true
}

func (e *Engine) expectState(state VideoState) {
	e.expect = &state
	e.expectDeadline = e.clock.Now().Add(settleTimeout)
}

// OnTimeUpdate sends the local position at most once per update interval.
func (e *Engine) OnTimeUpdate(t float64) {
	if !e.state.steady() || e.applyingRemote {
		return
	}

	now := e.clock.Now()
	if !e.lastUpdate.IsZero() && now.Sub(e.lastUpdate) < updateInterval {
		return
	}
	e.lastUpdate = now

	e.roomStatus = e.roomStatus.WithTime(t)
	e.send(domain.Update{Time: t}, room.Unreliable)
}

// Seek moves the local player on user request and tells the room.
func (e *Engine) Seek(t float64) {
	if e.player.IsRemoteStream() {
		return
	}

	wasPlaying := e.state == StatePlaying
	e.player.SetCurrentTime(t)

	e.roomStatus = e.roomStatus.WithTime(t)
	e.send(domain.Seek{Time: t, WasPlaying: wasPlaying}, room.Reliable)
}

// OnRemote applies a player message sent by another member.
func (e *Engine) OnRemote(payload domain.Payload) {
	t, ok := domain.PlayerTime(payload)
	if !ok {
		return
	}
	if seek, ok := payload.(domain.Seek); ok {
		if seek.WasPlaying {
			e.roomStatus = domain.Playing(seek.Time)
		} else {
			e.roomStatus = domain.Paused(seek.Time)
		}
	} else {
		e.roomStatus = domain.ApplyToStatus(e.roomStatus, payload)
	}

	if e.state == StateSeeking {
		e.logger.Debug("ignoring remote player message while seeking", "kind", payload.Kind())
		return
	}

	stream := e.player.IsRemoteStream()

	switch p := payload.(type) {
	case domain.Play:
		if e.state.IsPaused() {
			e.expectState(StatePlaying)
			e.applyRemote(func() error {
				if !stream {
					e.player.SetCurrentTime(p.Time)
				}
				return e.player.Play()
			})
			return
		}

	case domain.Pause:
		if e.state == StatePlaying {
			e.expectState(StatePaused)
			e.applyRemote(func() error {
				err := e.player.Pause()
				if !stream {
					e.player.SetCurrentTime(p.Time)
				}
				return err
			})
			return
		}

	case domain.Seek:
		if stream {
			return
		}
		wasPlaying := p.WasPlaying
		e.resumeAfter = &wasPlaying
		if wasPlaying {
			e.expectState(StatePlaying)
		} else {
			e.expectState(StatePaused)
		}
		e.applyRemote(func() error {
			var err error
			if e.state == StatePlaying {
				err = e.player.Pause()
			}
			e.player.SetCurrentTime(p.Time)
			return err
		})
		return
	}

	e.correctDrift(t, stream)
}

func (e *Engine) correctDrift(t float64, stream bool) {
	if stream || !e.state.steady() {
		return
	}

	current := e.player.CurrentTime()
	if math.Abs(current-t) <= driftThreshold {
		return
	}

	e.logger.Debug("correcting drift", "local", current, "room", t)
	e.applyRemote(func() error {
		e.player.SetCurrentTime(t)
		return nil
	})
}

func (e *Engine) applyRemote(apply func() error) {
	e.applyingRemote = true
	defer func() { e.applyingRemote = false }()

	if err := apply(); err != nil {
		e.logger.Warn("failed to apply remote player command", "error", err)
	}
}

func (e *Engine) send(payload domain.Payload, reliability room.Reliability) {
	if err := e.sender.SendMessage(payload, reliability); err != nil {
		e.logger.Debug("failed to send player message", "kind", payload.Kind(), "error", err)
	}
}
