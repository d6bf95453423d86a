package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nova-clash/server/logging"
	"nova-clash/server/logging/lifecycle"
)

// SessionStatus moves strictly forward: lobby → active → finished.
type SessionStatus string

const (
	StatusLobby    SessionStatus = "lobby"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

// subscriber serializes writes to one websocket connection.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) writeMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// outboundFrame is one committed broadcast awaiting fan-out. Frames are
// enqueued under the session mutex, so queue order is commit order.
type outboundFrame struct {
	data    []byte
	exclude string // originator to skip (prediction echo suppression)
	only    string // when set, deliver to this identity alone
}

// Session owns the authoritative state of one match: its participants,
// their subscribers, and the ordered outbound queue. All mutation happens
// under mu; concurrent sessions never share state.
type Session struct {
	id         string
	hostName   string
	gameMode   string
	settings   string
	maxPlayers int
	createdAt  time.Time

	mu          sync.Mutex
	status      SessionStatus
	wasActive   bool
	players     map[string]*playerState
	subscribers map[string]*subscriber
	nextSlot    int
	shotSeq     uint64
	tick        uint64
	resync      *resyncPolicy

	outbound chan outboundFrame
	done     chan struct{}
	stopOnce sync.Once

	telemetry *telemetryCounters
	publisher logging.Publisher
	onEmpty   func(*Session)
}

func newSession(id, hostName, gameMode, settings string, maxPlayers int, telemetry *telemetryCounters, publisher logging.Publisher) *Session {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Session{
		id:          id,
		hostName:    hostName,
		gameMode:    gameMode,
		settings:    settings,
		maxPlayers:  maxPlayers,
		createdAt:   time.Now(),
		status:      StatusLobby,
		players:     make(map[string]*playerState),
		subscribers: make(map[string]*subscriber),
		resync:      newResyncPolicy(),
		outbound:    make(chan outboundFrame, outboundQueueSize),
		done:        make(chan struct{}),
		telemetry:   telemetry,
		publisher:   publisher,
	}
}

// ID returns the immutable session identifier.
func (s *Session) ID() string { return s.id }

// Info snapshots the discovery-facing view.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() SessionInfo {
	return SessionInfo{
		ID:          s.id,
		HostName:    s.hostName,
		Status:      string(s.status),
		PlayerCount: len(s.players),
		MaxPlayers:  s.maxPlayers,
		GameMode:    s.gameMode,
		Settings:    s.settings,
		CreatedAt:   s.createdAt.UnixMilli(),
	}
}

// run drives the fan-out queue and the fixed-rate housekeeping tick until
// the session finishes.
func (s *Session) run() {
	go s.runWriter()

	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			started := time.Now()
			s.advance(now)
			if s.telemetry != nil {
				s.telemetry.RecordTickDuration(time.Since(started))
			}
		}
	}
}

// advance runs one housekeeping step: heartbeat-stale participants are
// removed and Moving participants with an expired input window go Idle.
func (s *Session) advance(now time.Time) {
	s.mu.Lock()
	s.tick++
	var stale []string
	for id, state := range s.players {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, id)
			continue
		}
		if state.activity == activityMoving && now.Sub(state.lastMove) > idleTimeout {
			state.activity = activityIdle
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		lifecycle.HeartbeatTimeout(context.Background(), s.publisher, s.tickValue(), logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}, s.id)
		s.Leave(id)
	}
}

func (s *Session) tickValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// runWriter drains the outbound queue in order and fans each frame out to
// the current subscribers. A failed write removes that participant; delivery
// is best-effort at-most-once, no retry or replay.
func (s *Session) runWriter() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.outbound:
			s.mu.Lock()
			targets := make(map[string]*subscriber, len(s.subscribers))
			for id, sub := range s.subscribers {
				if frame.only != "" && id != frame.only {
					continue
				}
				if id == frame.exclude {
					continue
				}
				targets[id] = sub
			}
			s.mu.Unlock()

			var failed []string
			for id, sub := range targets {
				if err := sub.writeMessage(frame.data); err != nil {
					failed = append(failed, id)
				}
			}
			if s.telemetry != nil {
				s.telemetry.RecordBroadcast(len(frame.data), len(targets))
			}
			for _, id := range failed {
				s.Leave(id)
			}
		}
	}
}

// enqueueLocked marshals a payload and appends it to the outbound queue in
// commit order. Overflow drops the frame; a subscriber that misses one
// recovers through a fresh join snapshot, never a replay.
func (s *Session) enqueueLocked(payload any, exclude, only string) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case s.outbound <- outboundFrame{data: data, exclude: exclude, only: only}:
	default:
		if s.telemetry != nil {
			s.telemetry.IncrementDroppedFrames()
		}
	}
}

// join admits a participant, assigns its spawn slot, and returns the
// catch-up snapshot. Callers go through Registry.Join.
func (s *Session) join(identity string) (SnapshotMessage, error) {
	s.mu.Lock()
	if s.status == StatusFinished {
		s.mu.Unlock()
		return SnapshotMessage{}, ErrSessionClosed
	}
	if _, exists := s.players[identity]; exists {
		s.mu.Unlock()
		return SnapshotMessage{}, ErrDuplicateIdentity
	}
	if len(s.players) >= s.maxPlayers {
		s.mu.Unlock()
		return SnapshotMessage{}, ErrSessionFull
	}

	slot := s.nextSlot
	s.nextSlot++
	x, y, rotation := spawnPosition(slot)
	now := time.Now()
	state := &playerState{
		Player: Player{
			ID:       identity,
			X:        x,
			Y:        y,
			Rotation: rotation,
			Alive:    true,
		},
		lastHeartbeat: now,
		joinSlot:      slot,
	}
	s.players[identity] = state

	s.enqueueLocked(JoinedMessage{
		Ver:    ProtocolVersion,
		Type:   msgTypeJoined,
		Player: state.snapshot(),
	}, identity, "")

	snapshot := s.snapshotLocked(false)
	tick := s.tick
	s.mu.Unlock()

	lifecycle.PlayerJoined(context.Background(), s.publisher, tick, logging.EntityRef{ID: identity, Kind: logging.EntityKindPlayer}, s.id)
	return snapshot, nil
}

// Leave removes a participant. Idempotent: leaving twice, or leaving an
// identity that never joined, is a no-op. An active session that empties
// finishes and is handed back to the registry for eviction.
func (s *Session) Leave(identity string) {
	s.mu.Lock()
	if _, ok := s.players[identity]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.players, identity)
	sub, subOK := s.subscribers[identity]
	if subOK {
		delete(s.subscribers, identity)
	}

	s.enqueueLocked(LeftMessage{Ver: ProtocolVersion, Type: msgTypeLeft, ID: identity}, "", "")

	finished := false
	if len(s.players) == 0 && s.wasActive && s.status != StatusFinished {
		s.status = StatusFinished
		finished = true
	}
	tick := s.tick
	s.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}

	lifecycle.PlayerLeft(context.Background(), s.publisher, tick, logging.EntityRef{ID: identity, Kind: logging.EntityKindPlayer}, s.id)

	if finished {
		s.finish()
	}
}

// Start moves a lobby session to active without waiting for the first input.
func (s *Session) Start() {
	s.mu.Lock()
	changed := s.markActiveLocked()
	tick := s.tick
	s.mu.Unlock()
	if changed {
		lifecycle.SessionStarted(context.Background(), s.publisher, tick, s.id)
	}
}

// markActiveLocked performs the lobby → active transition. Finished sessions
// never move backward.
func (s *Session) markActiveLocked() bool {
	if s.status != StatusLobby {
		return false
	}
	s.status = StatusActive
	s.wasActive = true
	return true
}

// finish stops the queue and tick goroutines and notifies the registry.
func (s *Session) finish() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.status = StatusFinished
		tick := s.tick
		s.mu.Unlock()
		close(s.done)
		lifecycle.SessionFinished(context.Background(), s.publisher, tick, s.id)
		if s.onEmpty != nil {
			s.onEmpty(s)
		}
	})
}

// Attach associates a websocket connection with a joined participant and
// queues the catch-up snapshot for it. A second connection for the same
// identity replaces the first. After Attach, all writes to the connection go
// through the fan-out queue; the transport must not write directly.
func (s *Session) Attach(identity string, conn *websocket.Conn) bool {
	s.mu.Lock()
	state, ok := s.players[identity]
	if !ok {
		s.mu.Unlock()
		return false
	}
	state.lastHeartbeat = time.Now()

	if existing, ok := s.subscribers[identity]; ok {
		existing.conn.Close()
	}
	s.subscribers[identity] = &subscriber{conn: conn}
	snapshot := s.snapshotLocked(false)
	snapshot.You = identity
	s.enqueueLocked(snapshot, "", identity)
	s.mu.Unlock()
	return true
}

// SendTo queues a payload for one participant, serialized with the fan-out.
func (s *Session) SendTo(identity string, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[identity]; !ok {
		return false
	}
	s.enqueueLocked(payload, "", identity)
	return true
}

// Heartbeat records liveness and computes the round trip from the client
// send time when it is sane.
func (s *Session) Heartbeat(identity string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.players[identity]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = receivedAt

	// Measurements only count when the client clock lands in a plausible
	// window: at most 5s ahead of ours, and no further behind than the
	// disconnect window, beyond which the connection would already be gone.
	// A stamp outside the window (wrong epoch, seconds instead of millis)
	// refreshes liveness but not the RTT.
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5*time.Second)) && clientTime.After(receivedAt.Add(-disconnectAfter)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}
	return state.lastRTT, true
}

// snapshotLocked copies the session and player state for a catch-up frame.
func (s *Session) snapshotLocked(resync bool) SnapshotMessage {
	players := make([]Player, 0, len(s.players))
	for _, state := range s.players {
		players = append(players, state.snapshot())
	}
	return SnapshotMessage{
		Ver:        ProtocolVersion,
		Type:       msgTypeSnapshot,
		Session:    s.infoLocked(),
		Players:    players,
		Resync:     resync,
		ServerTime: time.Now().UnixMilli(),
	}
}

// PlayerSnapshot returns the authoritative state of one participant.
func (s *Session) PlayerSnapshot(identity string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.players[identity]
	if !ok {
		return Player{}, false
	}
	return state.snapshot(), true
}
