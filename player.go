package server

import (
	"math"
	"time"
)

// Player is the wire-visible kinematic state of one participant. Z is
// cosmetic depth in the 2.5D projection and never validated.
type Player struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
	Alive    bool    `json:"alive"`
}

// activityState tracks the Idle → Moving → Idle machine per participant.
type activityState int

const (
	activityIdle activityState = iota
	activityMoving
)

// playerState is the authoritative record owned by exactly one session.
type playerState struct {
	Player
	activity      activityState
	lastClientTS  int64 // unix millis of the last accepted move, CAS marker
	lastShotTS    int64 // unix millis of the last accepted shot
	lastMove      time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
	joinSlot      int
}

func (s *playerState) snapshot() Player {
	return s.Player
}

// spawnPosition places a joiner on a ring around the arena center, indexed
// by join slot so consecutive joiners never overlap.
func spawnPosition(slot int) (x, y, rotation float64) {
	angle := float64(slot) * (fullCircle / float64(maxSessionPlayers))
	x = arenaWidth/2 + math.Cos(angle)*spawnRingRadius
	y = arenaHeight/2 + math.Sin(angle)*spawnRingRadius
	rotation = normalizeRotation(angle + math.Pi)
	return x, y, rotation
}

// normalizeRotation wraps an angle into [0, 2π).
func normalizeRotation(r float64) float64 {
	r = math.Mod(r, fullCircle)
	if r < 0 {
		r += fullCircle
	}
	return r
}

// clamp bounds v to [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
