package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// telemetryCounters aggregates process-wide counters across all sessions.
type telemetryCounters struct {
	bytesSent          atomic.Uint64
	messagesSent       atomic.Uint64
	corrections        atomic.Uint64
	droppedInputs      atomic.Uint64
	staleInputs        atomic.Uint64
	droppedFrames      atomic.Uint64
	resyncs            atomic.Uint64
	tickDurationMillis atomic.Int64
	debug              bool
}

// TelemetrySnapshot is the diagnostics-facing view of the counters.
type TelemetrySnapshot struct {
	BytesSent     uint64 `json:"bytesSent"`
	MessagesSent  uint64 `json:"messagesSent"`
	Corrections   uint64 `json:"corrections"`
	DroppedInputs uint64 `json:"droppedInputs"`
	StaleInputs   uint64 `json:"staleInputs"`
	DroppedFrames uint64 `json:"droppedFrames"`
	Resyncs       uint64 `json:"resyncs"`
	TickDuration  int64  `json:"tickDurationMillis"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordBroadcast(bytes, recipients int) {
	if bytes < 0 {
		bytes = 0
	}
	if recipients < 0 {
		recipients = 0
	}
	t.bytesSent.Add(uint64(bytes) * uint64(recipients))
	t.messagesSent.Add(uint64(recipients))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms messages=%d bytes=%d corrections=%d\n",
			millis,
			t.messagesSent.Load(),
			t.bytesSent.Load(),
			t.corrections.Load(),
		)
	}
}

func (t *telemetryCounters) IncrementCorrections()   { t.corrections.Add(1) }
func (t *telemetryCounters) IncrementDroppedInputs() { t.droppedInputs.Add(1) }
func (t *telemetryCounters) IncrementStaleInputs()   { t.staleInputs.Add(1) }
func (t *telemetryCounters) IncrementDroppedFrames() { t.droppedFrames.Add(1) }
func (t *telemetryCounters) IncrementResyncs()       { t.resyncs.Add(1) }

func (t *telemetryCounters) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		BytesSent:     t.bytesSent.Load(),
		MessagesSent:  t.messagesSent.Load(),
		Corrections:   t.corrections.Load(),
		DroppedInputs: t.droppedInputs.Load(),
		StaleInputs:   t.staleInputs.Load(),
		DroppedFrames: t.droppedFrames.Load(),
		Resyncs:       t.resyncs.Load(),
		TickDuration:  t.tickDurationMillis.Load(),
	}
}
