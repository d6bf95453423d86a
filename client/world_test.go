package client

import (
	"math"
	"testing"

	server "nova-clash/server"
)

type recordingEmitter struct {
	moves  []Entity
	shoots []Entity
}

func (e *recordingEmitter) SendMove(x, y, rotation float64, sentAt int64) error {
	e.moves = append(e.moves, Entity{X: x, Y: y, Rotation: rotation})
	return nil
}

func (e *recordingEmitter) SendShoot(x, y, rotation float64, sentAt int64) error {
	e.shoots = append(e.shoots, Entity{X: x, Y: y, Rotation: rotation})
	return nil
}

func joinedWorld(ownID string, x, y, rotation float64) *World {
	w := NewWorld(ownID)
	w.ApplySnapshot(server.SnapshotMessage{
		Players: []server.Player{{ID: ownID, X: x, Y: y, Rotation: rotation}},
	})
	return w
}

func TestStepPredictsForwardMotion(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)
	emitter := &recordingEmitter{}

	dt := 1.0 / float64(server.TickRate())
	if err := w.Step(Input{Forward: true}, dt, 1000, emitter); err != nil {
		t.Fatalf("step: %v", err)
	}

	own := w.Own()
	wantX := 400 + math.Sin(0)*server.MoveSpeed()*dt
	wantY := 300 + math.Cos(0)*server.MoveSpeed()*dt
	if math.Abs(own.X-wantX) > 1e-9 || math.Abs(own.Y-wantY) > 1e-9 {
		t.Fatalf("predicted %v,%v want %v,%v", own.X, own.Y, wantX, wantY)
	}
	if len(emitter.moves) != 1 {
		t.Fatalf("expected one emitted move, got %d", len(emitter.moves))
	}
	if emitter.moves[0].X != own.X || emitter.moves[0].Y != own.Y {
		t.Fatalf("emitted move must match the prediction")
	}
}

func TestStepScalesBackwardMotion(t *testing.T) {
	w := joinedWorld("me", 400, 300, math.Pi/2)
	emitter := &recordingEmitter{}

	dt := 0.1
	if err := w.Step(Input{Backward: true}, dt, 1000, emitter); err != nil {
		t.Fatalf("step: %v", err)
	}

	own := w.Own()
	wantX := 400 - math.Sin(math.Pi/2)*server.MoveSpeed()*dt*server.ReverseFactor()
	if math.Abs(own.X-wantX) > 1e-9 {
		t.Fatalf("backward x = %v, want %v", own.X, wantX)
	}
}

func TestStepTurnsBeforeTranslating(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)
	emitter := &recordingEmitter{}

	dt := 0.1
	if err := w.Step(Input{TurnLeft: true, Forward: true}, dt, 1000, emitter); err != nil {
		t.Fatalf("step: %v", err)
	}

	own := w.Own()
	wantRot := server.RotationSpeed() * dt
	if math.Abs(own.Rotation-wantRot) > 1e-9 {
		t.Fatalf("rotation = %v, want %v", own.Rotation, wantRot)
	}
	wantX := 400 + math.Sin(wantRot)*server.MoveSpeed()*dt
	if math.Abs(own.X-wantX) > 1e-9 {
		t.Fatalf("translation must use the updated heading: x=%v want %v", own.X, wantX)
	}
}

func TestStepClampsToArena(t *testing.T) {
	width, _ := server.ArenaBounds()
	half := server.PlayerHalf()
	w := joinedWorld("me", width-half, 300, math.Pi/2)
	emitter := &recordingEmitter{}

	if err := w.Step(Input{Forward: true}, 1.0, 1000, emitter); err != nil {
		t.Fatalf("step: %v", err)
	}
	if own := w.Own(); own.X != width-half {
		t.Fatalf("prediction must stop at the wall, x=%v", own.X)
	}
}

func TestStepIgnoresInputBeforeJoin(t *testing.T) {
	w := NewWorld("me")
	emitter := &recordingEmitter{}
	if err := w.Step(Input{Forward: true}, 0.1, 1000, emitter); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(emitter.moves) != 0 {
		t.Fatalf("no inputs may be emitted before the join snapshot")
	}
}

func TestStepIdleEmitsNothing(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)
	emitter := &recordingEmitter{}
	if err := w.Step(Input{}, 0.1, 1000, emitter); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(emitter.moves) != 0 || len(emitter.shoots) != 0 {
		t.Fatalf("idle tick must emit nothing")
	}
}

func TestApplyMovedRemoteIsVerbatim(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)
	w.ApplyJoined(server.JoinedMessage{Player: server.Player{ID: "other", X: 100, Y: 100}})

	w.ApplyMoved(server.MovedMessage{ID: "other", X: 123.4, Y: 56.7, Rotation: 1.5})
	remote := w.Remotes()["other"]
	if remote.X != 123.4 || remote.Y != 56.7 || remote.Rotation != 1.5 {
		t.Fatalf("remote state must apply verbatim, got %+v", remote)
	}
}

func TestApplyMovedOwnSnapsOnlyBeyondEpsilon(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)

	// Agreement within the epsilons leaves the prediction alone.
	w.ApplyMoved(server.MovedMessage{ID: "me", X: 400.1, Y: 300.1, Rotation: 0.01})
	if own := w.Own(); own.X != 400 || own.Y != 300 {
		t.Fatalf("in-epsilon echo must not move the prediction, got %+v", own)
	}
	if w.Corrections() != 0 {
		t.Fatalf("in-epsilon echo must not count as a correction")
	}

	// A corrected echo beyond the epsilon snaps.
	w.ApplyMoved(server.MovedMessage{ID: "me", X: 380, Y: 290, Rotation: 0.2, Corrected: true})
	own := w.Own()
	if own.X != 380 || own.Y != 290 || own.Rotation != 0.2 {
		t.Fatalf("diverged echo must snap to authoritative state, got %+v", own)
	}
	if w.Corrections() != 1 {
		t.Fatalf("expected one counted correction, got %d", w.Corrections())
	}
}

func TestApplyMovedOwnSnapsOnRotationDivergence(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)

	// Same position, heading far off: the echo must still reconcile.
	w.ApplyMoved(server.MovedMessage{ID: "me", X: 400, Y: 300, Rotation: 1.0})
	if own := w.Own(); own.Rotation != 1.0 {
		t.Fatalf("rotation-only divergence must snap, got %+v", own)
	}
	if w.Corrections() != 1 {
		t.Fatalf("expected one counted correction, got %d", w.Corrections())
	}

	// Headings that disagree only across the 0/2π wrap are in agreement.
	w.ApplySnapshot(server.SnapshotMessage{
		Players: []server.Player{{ID: "me", X: 400, Y: 300, Rotation: 0.01}},
	})
	w.ApplyMoved(server.MovedMessage{ID: "me", X: 400, Y: 300, Rotation: 2*math.Pi - 0.01})
	if w.Corrections() != 1 {
		t.Fatalf("wrap-adjacent headings must not snap, corrections=%d", w.Corrections())
	}
}

func TestApplySnapshotResetsRemoteTable(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)
	w.ApplyJoined(server.JoinedMessage{Player: server.Player{ID: "stale", X: 1, Y: 1}})

	w.ApplySnapshot(server.SnapshotMessage{
		Players: []server.Player{
			{ID: "me", X: 10, Y: 20, Rotation: 0.3},
			{ID: "fresh", X: 30, Y: 40},
		},
	})

	if own := w.Own(); own.X != 10 || own.Y != 20 {
		t.Fatalf("snapshot must overwrite own state, got %+v", own)
	}
	remotes := w.Remotes()
	if _, ok := remotes["stale"]; ok {
		t.Fatalf("snapshot must drop entries it does not carry")
	}
	if remote, ok := remotes["fresh"]; !ok || remote.X != 30 {
		t.Fatalf("snapshot must install carried entries, got %+v", remotes)
	}
}

func TestApplyJoinedAndLeft(t *testing.T) {
	w := joinedWorld("me", 400, 300, 0)
	w.ApplyJoined(server.JoinedMessage{Player: server.Player{ID: "other", X: 5, Y: 6}})
	if _, ok := w.Remotes()["other"]; !ok {
		t.Fatalf("joined participant must appear in the remote table")
	}
	// Our own join announcement echoes back on reconnect; ignore it.
	w.ApplyJoined(server.JoinedMessage{Player: server.Player{ID: "me", X: 0, Y: 0}})
	if _, ok := w.Remotes()["me"]; ok {
		t.Fatalf("own identity must never enter the remote table")
	}

	w.ApplyLeft(server.LeftMessage{ID: "other"})
	if _, ok := w.Remotes()["other"]; ok {
		t.Fatalf("departed participant must be removed")
	}
}
