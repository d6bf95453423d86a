package server

import (
	"math"
	"time"
)

const (
	ProtocolVersion = 1

	writeWait         = 10 * time.Second
	tickRate          = 15 // ticks per second (10–20 Hz)
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	// Kinematics shared with the prediction layer. Units per second on the
	// movement plane; rotation in radians per second.
	moveSpeed     = 160.0
	rotationSpeed = 3.0
	reverseFactor = 0.5

	arenaWidth  = 800.0
	arenaHeight = 600.0
	playerHalf  = 14.0

	// Spawn ring keeps late joiners from stacking on top of each other.
	spawnRingRadius = 180.0

	// A move is clamped once it exceeds the per-elapsed-time budget and
	// dropped entirely (with a resync) once it exceeds the extreme multiple.
	implausibleDropFactor = 8.0

	// Shots must originate within this distance of the authoritative
	// position; farther origins are snapped before broadcasting.
	shotOriginTolerance = playerHalf * 2

	// Participants revert to Idle when no move arrives within this window.
	idleTimeout = 500 * time.Millisecond

	// Clock-skewed clients may report near-zero elapsed time between moves;
	// the displacement budget never shrinks below one tick's worth.
	minElapsed = time.Second / tickRate

	minSessionPlayers = 2
	maxSessionPlayers = 16

	outboundQueueSize = 256

	fullCircle = 2 * math.Pi
)

// TickRate exposes the simulation cadence for diagnostics.
func TickRate() int { return tickRate }

// HeartbeatInterval exposes the expected client heartbeat cadence.
func HeartbeatInterval() time.Duration { return heartbeatInterval }

// MoveSpeed is the kinematic bound shared by validation and prediction.
func MoveSpeed() float64 { return moveSpeed }

// RotationSpeed is the turn rate shared by validation and prediction.
func RotationSpeed() float64 { return rotationSpeed }

// ReverseFactor scales backward movement, matching the client formula.
func ReverseFactor() float64 { return reverseFactor }

// ArenaBounds returns the playable area's width and height.
func ArenaBounds() (width, height float64) { return arenaWidth, arenaHeight }

// PlayerHalf is the participant's half-extent, used for bounds clamping.
func PlayerHalf() float64 { return playerHalf }
