package lifecycle

import (
	"context"

	"nova-clash/server/logging"
)

const (
	// EventSessionCreated is emitted when the registry allocates a session.
	EventSessionCreated logging.EventType = "lifecycle.session_created"
	// EventSessionStarted is emitted on the lobby → active transition.
	EventSessionStarted logging.EventType = "lifecycle.session_started"
	// EventSessionFinished is emitted when a session ends and is evicted.
	EventSessionFinished logging.EventType = "lifecycle.session_finished"
	// EventPlayerJoined is emitted when a participant is admitted.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerLeft is emitted when a participant is removed.
	EventPlayerLeft logging.EventType = "lifecycle.player_left"
	// EventHeartbeatTimeout is emitted when liveness pruning removes a participant.
	EventHeartbeatTimeout logging.EventType = "lifecycle.heartbeat_timeout"
)

// CreatedPayload captures the configuration of a new session.
type CreatedPayload struct {
	HostName   string `json:"hostName"`
	GameMode   string `json:"gameMode"`
	MaxPlayers int    `json:"maxPlayers"`
}

func SessionCreated(ctx context.Context, pub logging.Publisher, sessionID, hostName, gameMode string, maxPlayers int) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventSessionCreated,
		Actor:     logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryLifecycle,
		Payload:   CreatedPayload{HostName: hostName, GameMode: gameMode, MaxPlayers: maxPlayers},
	})
}

func SessionStarted(ctx context.Context, pub logging.Publisher, tick uint64, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventSessionStarted,
		Tick:      tick,
		Actor:     logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryLifecycle,
	})
}

func SessionFinished(ctx context.Context, pub logging.Publisher, tick uint64, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventSessionFinished,
		Tick:      tick,
		Actor:     logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryLifecycle,
	})
}

func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventPlayerJoined,
		Tick:      tick,
		Actor:     actor,
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryLifecycle,
	})
}

func PlayerLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventPlayerLeft,
		Tick:      tick,
		Actor:     actor,
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryLifecycle,
	})
}

func HeartbeatTimeout(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventHeartbeatTimeout,
		Tick:      tick,
		Actor:     actor,
		SessionID: sessionID,
		Severity:  logging.SeverityWarn,
		Category:  logging.CategoryLifecycle,
	})
}
