package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"nova-clash/server/logging"
	"nova-clash/server/logging/lifecycle"
)

// GameModes accepted at session creation. The settings blob is free-form and
// opaque to the core.
var GameModes = map[string]bool{
	"deathmatch": true,
	"duel":       true,
	"survival":   true,
}

const DefaultGameMode = "deathmatch"

// Registry owns the process-wide session map. It is the only structure
// reached from every external entry point; each session guards its own state,
// so unrelated sessions never serialize behind one another here beyond the
// map lookup itself.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	telemetry  *telemetryCounters
	publisher  logging.Publisher
	onFinished func(SessionInfo)
}

// NewRegistry builds an empty registry. onFinished receives the final
// snapshot of every session that ends, off the real-time path; nil disables
// the hand-off.
func NewRegistry(publisher logging.Publisher, onFinished func(SessionInfo)) *Registry {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		telemetry:  newTelemetryCounters(),
		publisher:  publisher,
		onFinished: onFinished,
	}
}

const sessionIDChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const sessionIDLength = 6

func generateSessionID() string {
	b := make([]byte, sessionIDLength)
	max := big.NewInt(int64(len(sessionIDChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = sessionIDChars[idx.Int64()]
	}
	return string(b)
}

// Create allocates a session in status lobby and returns its id.
func (r *Registry) Create(hostName, gameMode, settings string, maxPlayers int) (string, error) {
	if maxPlayers < minSessionPlayers || maxPlayers > maxSessionPlayers {
		return "", fmt.Errorf("maxPlayers=%d: %w", maxPlayers, ErrCapacity)
	}
	if gameMode == "" {
		gameMode = DefaultGameMode
	}
	if !GameModes[gameMode] {
		return "", fmt.Errorf("unknown game mode %q", gameMode)
	}

	r.mu.Lock()
	var id string
	for {
		id = generateSessionID()
		if _, exists := r.sessions[id]; !exists {
			break
		}
	}
	session := newSession(id, hostName, gameMode, settings, maxPlayers, r.telemetry, r.publisher)
	session.onEmpty = r.evict
	r.sessions[id] = session
	r.mu.Unlock()

	go session.run()

	lifecycle.SessionCreated(context.Background(), r.publisher, id, hostName, gameMode, maxPlayers)
	return id, nil
}

// Get looks a live session up by id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// Join admits an identity into a session and returns the catch-up snapshot.
func (r *Registry) Join(sessionID, identity string) (SnapshotMessage, error) {
	session, ok := r.Get(sessionID)
	if !ok {
		return SnapshotMessage{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return session.join(identity)
}

// Leave removes an identity from a session. Unknown sessions and identities
// are no-ops; disconnect paths call this without checking first.
func (r *Registry) Leave(sessionID, identity string) {
	session, ok := r.Get(sessionID)
	if !ok {
		return
	}
	session.Leave(identity)
}

// List returns discovery snapshots, optionally filtered by status.
func (r *Registry) List(status string) []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		info := s.Info()
		if status != "" && info.Status != status {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// evict removes a finished session and hands its final snapshot to the
// persistence collaborator. Runs outside any session lock.
func (r *Registry) evict(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.ID())
	r.mu.Unlock()

	if r.onFinished != nil {
		r.onFinished(s.Info())
	}
}

// Close tears every live session down. Part of process shutdown, never the
// per-tick path.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.finish()
	}
}

// TelemetrySnapshot exposes process-wide counters for diagnostics.
func (r *Registry) TelemetrySnapshot() TelemetrySnapshot {
	return r.telemetry.Snapshot()
}

// SessionCount reports the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
