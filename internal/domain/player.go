package domain

import "math"

// PlayerStatus is the room-wide playback position. Last writer wins.
type PlayerStatus struct {
	Playing bool    `json:"playing"`
	Time    float64 `json:"time"`
}

func Paused(t float64) PlayerStatus {
	return PlayerStatus{Playing: false, Time: t}
}

func Playing(t float64) PlayerStatus {
	return PlayerStatus{Playing: true, Time: t}
}

func (s PlayerStatus) IsPaused() bool {
	return !s.Playing
}

// WithTime keeps the playing state and moves the position.
func (s PlayerStatus) WithTime(t float64) PlayerStatus {
	s.Time = t
	return s
}

// Drift is the absolute distance between the status position and t.
func (s PlayerStatus) Drift(t float64) float64 {
	return math.Abs(s.Time - t)
}
