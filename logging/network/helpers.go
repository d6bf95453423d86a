package network

import (
	"context"

	"nova-clash/server/logging"
)

const (
	// EventConnected is emitted when a websocket attaches to a session.
	EventConnected logging.EventType = "network.connected"
	// EventDisconnected is emitted when a connection drops or is replaced.
	EventDisconnected logging.EventType = "network.disconnected"
	// EventMalformed is emitted when an inbound frame fails to decode.
	EventMalformed logging.EventType = "network.malformed_message"
)

func Connected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, sessionID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:      EventConnected,
		Actor:     actor,
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryNetwork,
	})
}

func Disconnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, sessionID, reason string) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:      EventDisconnected,
		Actor:     actor,
		SessionID: sessionID,
		Severity:  logging.SeverityInfo,
		Category:  logging.CategoryNetwork,
	}
	if reason != "" {
		event.Extra = map[string]any{"reason": reason}
	}
	pub.Publish(ctx, event)
}

func Malformed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, sessionID string, err error) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:      EventMalformed,
		Actor:     actor,
		SessionID: sessionID,
		Severity:  logging.SeverityWarn,
		Category:  logging.CategoryNetwork,
	}
	if err != nil {
		event.Extra = map[string]any{"error": err.Error()}
	}
	pub.Publish(ctx, event)
}
