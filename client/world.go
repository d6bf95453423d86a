// Package client is the participant-side half of the synchronization
// engine: it applies local input optimistically for zero-latency feedback,
// emits the matching input events, and reconciles against the authoritative
// broadcasts coming back.
package client

import (
	"math"
	"sync"

	server "nova-clash/server"
)

// Entity is the locally rendered state of one participant.
type Entity struct {
	ID       string
	X        float64
	Y        float64
	Z        float64
	Rotation float64
}

// Input is the device state sampled for one local tick.
type Input struct {
	Forward   bool
	Backward  bool
	TurnLeft  bool
	TurnRight bool
	Shoot     bool
}

// Emitter carries input events to the server. Implementations own the wire.
type Emitter interface {
	SendMove(x, y, rotation float64, sentAt int64) error
	SendShoot(x, y, rotation float64, sentAt int64) error
}

// snapEpsilon is the positional divergence beyond which an authoritative
// echo replaces the local prediction; rotationEpsilon is its angular
// counterpart. Below both the prediction was right and nothing moves.
const snapEpsilon = 0.5
const rotationEpsilon = 0.05

// World is one participant's view of a session: the predicted own entity
// plus the remote table driven entirely by broadcasts.
type World struct {
	mu      sync.Mutex
	ownID   string
	own     Entity
	joined  bool
	remotes map[string]Entity

	corrections uint64
}

func NewWorld(ownID string) *World {
	return &World{
		ownID:   ownID,
		remotes: make(map[string]Entity),
	}
}

// Step applies one tick of input to the predicted own state, using the same
// kinematic formula the server validates with, and emits the corresponding
// events. The optimistic state is visible immediately; the server echo only
// matters when it disagrees.
func (w *World) Step(in Input, dt float64, sentAt int64, emitter Emitter) error {
	w.mu.Lock()
	if !w.joined {
		w.mu.Unlock()
		return nil
	}

	next := w.own
	moved := false

	if in.TurnLeft {
		next.Rotation += server.RotationSpeed() * dt
		moved = true
	}
	if in.TurnRight {
		next.Rotation -= server.RotationSpeed() * dt
		moved = true
	}
	next.Rotation = normalize(next.Rotation)

	speed := server.MoveSpeed() * dt
	if in.Forward {
		next.X += math.Sin(next.Rotation) * speed
		next.Y += math.Cos(next.Rotation) * speed
		moved = true
	}
	if in.Backward {
		next.X -= math.Sin(next.Rotation) * speed * server.ReverseFactor()
		next.Y -= math.Cos(next.Rotation) * speed * server.ReverseFactor()
		moved = true
	}

	width, height := server.ArenaBounds()
	half := server.PlayerHalf()
	next.X = clamp(next.X, half, width-half)
	next.Y = clamp(next.Y, half, height-half)

	if moved {
		w.own = next
	}
	shoot := in.Shoot
	own := w.own
	w.mu.Unlock()

	if moved {
		if err := emitter.SendMove(own.X, own.Y, own.Rotation, sentAt); err != nil {
			return err
		}
	}
	if shoot {
		if err := emitter.SendShoot(own.X, own.Y, own.Rotation, sentAt); err != nil {
			return err
		}
	}
	return nil
}

// ApplySnapshot replaces the whole table with authoritative state; used for
// the join reply and for resyncs.
func (w *World) ApplySnapshot(msg server.SnapshotMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remotes = make(map[string]Entity, len(msg.Players))
	for _, p := range msg.Players {
		entity := Entity{ID: p.ID, X: p.X, Y: p.Y, Z: p.Z, Rotation: p.Rotation}
		if p.ID == w.ownID {
			w.own = entity
			w.joined = true
			continue
		}
		w.remotes[p.ID] = entity
	}
}

// ApplyMoved reconciles one movement broadcast. Remote identities are
// applied verbatim; the own identity snaps to the authoritative value only
// when the prediction diverged beyond the epsilon.
func (w *World) ApplyMoved(msg server.MovedMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg.ID != w.ownID {
		entity := w.remotes[msg.ID]
		entity.ID = msg.ID
		entity.X = msg.X
		entity.Y = msg.Y
		entity.Rotation = msg.Rotation
		w.remotes[msg.ID] = entity
		return
	}
	if math.Hypot(msg.X-w.own.X, msg.Y-w.own.Y) > snapEpsilon ||
		angularDistance(msg.Rotation, w.own.Rotation) > rotationEpsilon {
		w.own.X = msg.X
		w.own.Y = msg.Y
		w.own.Rotation = msg.Rotation
		w.corrections++
	}
}

// angularDistance is the shortest separation between two headings, so a
// wrap across 0/2π never reads as a full-circle divergence.
func angularDistance(a, b float64) float64 {
	d := math.Abs(normalize(a) - normalize(b))
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// ApplyShot acknowledges a fire broadcast. The core tracks no projectile
// state; the entry point exists so a presentation layer can hook effects.
func (w *World) ApplyShot(msg server.ShotMessage) {}

// ApplyJoined instantiates a remote entry for a new participant.
func (w *World) ApplyJoined(msg server.JoinedMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg.Player.ID == w.ownID {
		return
	}
	w.remotes[msg.Player.ID] = Entity{
		ID:       msg.Player.ID,
		X:        msg.Player.X,
		Y:        msg.Player.Y,
		Z:        msg.Player.Z,
		Rotation: msg.Player.Rotation,
	}
}

// ApplyLeft removes a departed participant.
func (w *World) ApplyLeft(msg server.LeftMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.remotes, msg.ID)
}

// Own returns the predicted own entity.
func (w *World) Own() Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.own
}

// Remotes copies the remote table.
func (w *World) Remotes() map[string]Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	copied := make(map[string]Entity, len(w.remotes))
	for id, entity := range w.remotes {
		copied[id] = entity
	}
	return copied
}

// Corrections reports how many times the server overruled the prediction.
func (w *World) Corrections() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.corrections
}

// Joined reports whether the join snapshot has been applied.
func (w *World) Joined() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.joined
}

func normalize(r float64) float64 {
	r = math.Mod(r, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
