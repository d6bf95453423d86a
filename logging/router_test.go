package logging_test

import (
	"context"
	"testing"
	"time"

	"nova-clash/server/logging"
	"nova-clash/server/logging/lifecycle"
	"nova-clash/server/logging/sinks"
)

func TestRouterForwardsToSinks(t *testing.T) {
	memory := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	router := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})
	defer router.Close(context.Background())

	router.Publish(context.Background(), logging.Event{
		Type:     "test_event",
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
	})

	deadline := time.After(time.Second)
	for {
		events := memory.Events()
		if len(events) == 1 {
			if events[0].Type != "test_event" {
				t.Fatalf("unexpected event %+v", events[0])
			}
			if events[0].Time.IsZero() {
				t.Fatalf("router must stamp events with the clock")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("event never reached the sink, got %d", len(events))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	memory := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})

	router.Publish(context.Background(), logging.Event{Type: "quiet", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "loud", Severity: logging.SeverityError})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "loud" {
		t.Fatalf("expected only the loud event, got %+v", events)
	}
}

func TestRouterDropsWhenQueueIsFull(t *testing.T) {
	blocker := make(chan struct{})
	slow := sinkFunc(func(logging.Event) error {
		<-blocker
		return nil
	})
	cfg := logging.DefaultConfig()
	cfg.BufferSize = 1
	router := logging.NewRouter(nil, cfg, []logging.NamedSink{{Name: "slow", Sink: slow}})

	for i := 0; i < 50; i++ {
		router.Publish(context.Background(), logging.Event{Type: "flood", Severity: logging.SeverityInfo})
	}
	close(blocker)

	stats := router.Stats()
	if stats.DroppedTotal == 0 {
		t.Fatalf("flooding a full queue must drop, stats=%+v", stats)
	}
	router.Close(context.Background())
}

func TestRouterSinkLookup(t *testing.T) {
	memory := sinks.NewMemory()
	router := logging.NewRouter(nil, logging.DefaultConfig(), []logging.NamedSink{{Name: "memory", Sink: memory}})

	if got := router.Sink("memory"); got != memory {
		t.Fatalf("expected the registered memory sink, got %v", got)
	}
	if got := router.Sink("console"); got != nil {
		t.Fatalf("unregistered name must return nil, got %v", got)
	}

	router.Publish(context.Background(), logging.Event{Type: "first", Severity: logging.SeverityInfo})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if events := memory.Events(); len(events) != 1 {
		t.Fatalf("expected one retained event, got %d", len(events))
	}

	memory.Reset()
	if events := memory.Events(); len(events) != 0 {
		t.Fatalf("reset must clear retained events, got %d", len(events))
	}
}

func TestPublisherFuncForwardsAndTolerantOfNil(t *testing.T) {
	var captured []logging.Event
	pub := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		captured = append(captured, event)
	})
	lifecycle.SessionStarted(context.Background(), pub, 7, "ABC123")

	if len(captured) != 1 {
		t.Fatalf("expected one captured event, got %d", len(captured))
	}
	if captured[0].Type != lifecycle.EventSessionStarted || captured[0].SessionID != "ABC123" || captured[0].Tick != 7 {
		t.Fatalf("unexpected event %+v", captured[0])
	}

	var nilPub logging.PublisherFunc
	nilPub.Publish(context.Background(), logging.Event{Type: "ignored"})
}

type sinkFunc func(logging.Event) error

func (f sinkFunc) Write(event logging.Event) error { return f(event) }

func (f sinkFunc) Close(context.Context) error { return nil }
