package server

import "errors"

// Wire message types. Every outbound payload carries the protocol version so
// clients can reject frames from a mismatched server build. The schema export
// tool under cmd/protocolschema reflects over these structs.

// SessionInfo is the discovery-facing view of a session.
type SessionInfo struct {
	ID          string `json:"id"`
	HostName    string `json:"hostName"`
	Status      string `json:"status"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	GameMode    string `json:"gameMode"`
	Settings    string `json:"settings,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// SnapshotMessage is the full-state catch-up sent on join and on resync.
type SnapshotMessage struct {
	Ver        int         `json:"ver"`
	Type       string      `json:"type"`
	Session    SessionInfo `json:"session"`
	Players    []Player    `json:"players"`
	You        string      `json:"you,omitempty"`
	Resync     bool        `json:"resync,omitempty"`
	ServerTime int64       `json:"serverTime"`
}

// MovedMessage broadcasts the committed (possibly clamped) state of a move.
type MovedMessage struct {
	Ver       int     `json:"ver"`
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rotation  float64 `json:"rotation"`
	Corrected bool    `json:"corrected,omitempty"`
}

// ShotMessage broadcasts a fire event with its server-assigned sequence.
type ShotMessage struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Rotation   float64 `json:"rotation"`
	Sequence   uint64  `json:"sequence"`
	ServerTime int64   `json:"serverTime"`
}

// JoinedMessage announces a new participant and its spawn state.
type JoinedMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Player Player `json:"player"`
}

// LeftMessage announces a departed participant.
type LeftMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SessionListMessage carries a discovery snapshot of matching sessions.
type SessionListMessage struct {
	Ver      int           `json:"ver"`
	Type     string        `json:"type"`
	Sessions []SessionInfo `json:"sessions"`
}

// ErrorMessage reports a rejected request back to the originator only.
type ErrorMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatMessage echoes a heartbeat with the measured round trip.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

const (
	msgTypeSnapshot    = "session_snapshot"
	msgTypeMoved       = "player_moved"
	msgTypeShot        = "player_shot"
	msgTypeJoined      = "player_joined"
	msgTypeLeft        = "player_left"
	msgTypeSessionList = "session_list_updated"
	msgTypeHeartbeat   = "heartbeat"
	msgTypeError       = "error"
)

// NewSessionListMessage wraps discovery snapshots for the wire.
func NewSessionListMessage(sessions []SessionInfo) SessionListMessage {
	if sessions == nil {
		sessions = []SessionInfo{}
	}
	return SessionListMessage{Ver: ProtocolVersion, Type: msgTypeSessionList, Sessions: sessions}
}

// NewHeartbeatMessage builds the ack for one heartbeat round trip.
func NewHeartbeatMessage(serverTime, clientTime, rttMillis int64) HeartbeatMessage {
	return HeartbeatMessage{
		Ver:        ProtocolVersion,
		Type:       msgTypeHeartbeat,
		ServerTime: serverTime,
		ClientTime: clientTime,
		RTTMillis:  rttMillis,
	}
}

// NewErrorMessage maps a registry error onto its wire code.
func NewErrorMessage(err error) ErrorMessage {
	code := "internal"
	switch {
	case errors.Is(err, ErrNotFound):
		code = "not_found"
	case errors.Is(err, ErrSessionFull):
		code = "session_full"
	case errors.Is(err, ErrSessionClosed):
		code = "session_closed"
	case errors.Is(err, ErrCapacity):
		code = "capacity"
	case errors.Is(err, ErrDuplicateIdentity):
		code = "duplicate_identity"
	}
	return ErrorMessage{Ver: ProtocolVersion, Type: msgTypeError, Code: code, Message: err.Error()}
}
