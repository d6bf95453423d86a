package combat

import (
	"context"

	"nova-clash/server/logging"
)

const (
	// EventShotFired is emitted for every accepted fire action.
	EventShotFired logging.EventType = "combat.shot_fired"
	// EventImplausibleMove is emitted when a move fails the plausibility bound.
	EventImplausibleMove logging.EventType = "combat.implausible_move"
	// EventImplausibleShot is emitted when a shot origin is snapped.
	EventImplausibleShot logging.EventType = "combat.implausible_shot"
)

// ImplausibleMovePayload records how far outside the budget a move landed.
type ImplausibleMovePayload struct {
	Requested float64 `json:"requested"`
	Allowed   float64 `json:"allowed"`
	Dropped   bool    `json:"dropped,omitempty"`
}

func ShotFired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, sequence uint64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShotFired,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Extra:    map[string]any{"sequence": sequence},
	})
}

func ImplausibleMove(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ImplausibleMovePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventImplausibleMove,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

func ImplausibleShot(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, sequence uint64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventImplausibleShot,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Extra:    map[string]any{"sequence": sequence},
	})
}
