package server

import (
	"context"
	"math"
	"time"

	"nova-clash/server/logging"
	"nova-clash/server/logging/combat"
	"nova-clash/server/logging/lifecycle"
)

// MoveInput is a client-reported movement intent. The absolute values are
// never trusted; the processor validates them against the authoritative
// state before anything is committed or broadcast.
type MoveInput struct {
	X        float64
	Y        float64
	Rotation float64
	ClientTS int64 // unix millis on the sender's clock
}

// ShootInput is a client-reported fire action.
type ShootInput struct {
	X        float64
	Y        float64
	Rotation float64
	ClientTS int64
}

// Outcome reports how the processor handled one input.
type Outcome string

const (
	// OutcomeApplied means the input was committed as requested.
	OutcomeApplied Outcome = "applied"
	// OutcomeCorrected means the input was committed with a bounded correction.
	OutcomeCorrected Outcome = "corrected"
	// OutcomeDropped means the input was discarded and a resync was sent.
	OutcomeDropped Outcome = "dropped"
	// OutcomeStale means a delayed input lost the monotonic-write check.
	OutcomeStale Outcome = "stale"
	// OutcomeUnknown means the identity is not (or no longer) in the session.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeClosed means the session is finished and accepts no input.
	OutcomeClosed Outcome = "closed"
)

// HandleMove validates a movement intent, commits the bounded result to the
// player state store, and fans the committed value out. Requests within the
// kinematic budget pass through verbatim; implausible ones are clamped along
// the requested direction; extreme ones are dropped and answered with an
// authoritative resync instead of an error.
func (s *Session) HandleMove(identity string, in MoveInput) Outcome {
	s.mu.Lock()
	if s.status == StatusFinished {
		s.mu.Unlock()
		return OutcomeClosed
	}
	state, ok := s.players[identity]
	if !ok {
		s.mu.Unlock()
		return OutcomeUnknown
	}
	if in.ClientTS <= state.lastClientTS && state.lastClientTS != 0 {
		s.mu.Unlock()
		if s.telemetry != nil {
			s.telemetry.IncrementStaleInputs()
		}
		return OutcomeStale
	}

	s.resync.noteEvent()

	elapsed := minElapsed
	if state.lastClientTS != 0 {
		if d := time.Duration(in.ClientTS-state.lastClientTS) * time.Millisecond; d > elapsed {
			elapsed = d
		}
	}
	budget := moveSpeed * elapsed.Seconds()

	dx := in.X - state.X
	dy := in.Y - state.Y
	dist := math.Hypot(dx, dy)

	outcome := OutcomeApplied
	x, y := in.X, in.Y
	switch {
	case dist > budget*implausibleDropFactor:
		// Too far gone for a clamp to mean anything. Drop the input and
		// resend the authoritative state to the originator.
		s.resync.noteCorrection(identity)
		snapshot := s.snapshotLocked(true)
		s.enqueueLocked(snapshot, "", identity)
		tick := s.tick
		s.mu.Unlock()
		if s.telemetry != nil {
			s.telemetry.IncrementDroppedInputs()
		}
		combat.ImplausibleMove(context.Background(), s.publisher, tick,
			logging.EntityRef{ID: identity, Kind: logging.EntityKindPlayer},
			combat.ImplausibleMovePayload{Requested: dist, Allowed: budget, Dropped: true})
		return OutcomeDropped
	case dist > budget:
		scale := budget / dist
		x = state.X + dx*scale
		y = state.Y + dy*scale
		outcome = OutcomeCorrected
		s.resync.noteCorrection(identity)
	}

	x = clamp(x, playerHalf, arenaWidth-playerHalf)
	y = clamp(y, playerHalf, arenaHeight-playerHalf)

	now := time.Now()
	state.X = x
	state.Y = y
	state.Rotation = normalizeRotation(in.Rotation)
	state.lastClientTS = in.ClientTS
	state.lastMove = now
	state.lastHeartbeat = now
	state.activity = activityMoving

	started := s.markActiveLocked()

	// A verbatim commit is suppressed for the originator, whose prediction
	// already shows it. A corrected commit must reach the originator so its
	// reconciliation can snap to the authoritative value.
	exclude := identity
	if outcome == OutcomeCorrected {
		exclude = ""
	}
	s.enqueueLocked(MovedMessage{
		Ver:       ProtocolVersion,
		Type:      msgTypeMoved,
		ID:        identity,
		X:         state.X,
		Y:         state.Y,
		Rotation:  state.Rotation,
		Corrected: outcome == OutcomeCorrected,
	}, exclude, "")

	resyncTarget, resyncPending := s.consumeResyncLocked()
	tick := s.tick
	s.mu.Unlock()

	if started {
		lifecycle.SessionStarted(context.Background(), s.publisher, tick, s.id)
	}
	if outcome == OutcomeCorrected {
		if s.telemetry != nil {
			s.telemetry.IncrementCorrections()
		}
		combat.ImplausibleMove(context.Background(), s.publisher, tick,
			logging.EntityRef{ID: identity, Kind: logging.EntityKindPlayer},
			combat.ImplausibleMovePayload{Requested: dist, Allowed: budget})
	}
	if resyncPending {
		s.sendResync(resyncTarget)
	}
	return outcome
}

// HandleShoot validates a fire action against the shooter's authoritative
// position, stamps it with a server sequence number, and fans it out. Shots
// are fire-and-forget: no projectile entity is simulated.
func (s *Session) HandleShoot(identity string, in ShootInput) Outcome {
	s.mu.Lock()
	if s.status == StatusFinished {
		s.mu.Unlock()
		return OutcomeClosed
	}
	state, ok := s.players[identity]
	if !ok {
		s.mu.Unlock()
		return OutcomeUnknown
	}
	// Shots keep their own monotonic marker. A shot shares its client stamp
	// with the move emitted on the same prediction tick, so comparing against
	// the move marker would discard every shot fired while moving.
	if in.ClientTS <= state.lastShotTS && state.lastShotTS != 0 {
		s.mu.Unlock()
		if s.telemetry != nil {
			s.telemetry.IncrementStaleInputs()
		}
		return OutcomeStale
	}

	s.resync.noteEvent()

	outcome := OutcomeApplied
	x, y := in.X, in.Y
	if math.Hypot(in.X-state.X, in.Y-state.Y) > shotOriginTolerance {
		x, y = state.X, state.Y
		outcome = OutcomeCorrected
		s.resync.noteCorrection(identity)
	}

	state.lastShotTS = in.ClientTS
	state.lastHeartbeat = time.Now()

	s.shotSeq++
	seq := s.shotSeq
	started := s.markActiveLocked()

	exclude := identity
	if outcome == OutcomeCorrected {
		exclude = ""
	}
	s.enqueueLocked(ShotMessage{
		Ver:        ProtocolVersion,
		Type:       msgTypeShot,
		ID:         identity,
		X:          x,
		Y:          y,
		Rotation:   normalizeRotation(in.Rotation),
		Sequence:   seq,
		ServerTime: time.Now().UnixMilli(),
	}, exclude, "")

	resyncTarget, resyncPending := s.consumeResyncLocked()
	tick := s.tick
	s.mu.Unlock()

	if started {
		lifecycle.SessionStarted(context.Background(), s.publisher, tick, s.id)
	}
	if outcome == OutcomeCorrected {
		if s.telemetry != nil {
			s.telemetry.IncrementCorrections()
		}
		combat.ImplausibleShot(context.Background(), s.publisher, tick,
			logging.EntityRef{ID: identity, Kind: logging.EntityKindPlayer}, seq)
	}
	combat.ShotFired(context.Background(), s.publisher, tick,
		logging.EntityRef{ID: identity, Kind: logging.EntityKindPlayer}, seq)
	if resyncPending {
		s.sendResync(resyncTarget)
	}
	return outcome
}

// consumeResyncLocked asks the resync policy whether the correction ratio
// tripped since the last check.
func (s *Session) consumeResyncLocked() (string, bool) {
	signal, ok := s.resync.consume()
	if !ok {
		return "", false
	}
	target := ""
	if len(signal.Identities) > 0 {
		target = signal.Identities[len(signal.Identities)-1]
	}
	if s.telemetry != nil {
		s.telemetry.IncrementResyncs()
	}
	return target, ok
}

// sendResync queues a full authoritative snapshot for one participant.
func (s *Session) sendResync(identity string) {
	if identity == "" {
		return
	}
	s.mu.Lock()
	snapshot := s.snapshotLocked(true)
	s.enqueueLocked(snapshot, "", identity)
	s.mu.Unlock()
}
