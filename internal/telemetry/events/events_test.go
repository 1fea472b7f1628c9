package events

import (
	"testing"
	"time"

	"github.com/clinictrack/emgcore/internal/telemetry/metrics"
)

func TestBusBasicPublishSubscribe(t *testing.T) {
	bus := NewBus(metrics.NewNoopProvider())
	sub, err := bus.Subscribe(10)
	if err != nil {
		t.Fatalf("subscribe err: %v", err)
	}
	defer func() { _ = sub.Close() }()

	ev := Event{Category: CategorySession, Type: "session_created"}
	if err := bus.Publish(ev); err != nil {
		t.Fatalf("publish err: %v", err)
	}

	select {
	case got := <-sub.C():
		if got.Type != ev.Type || got.Category != ev.Category {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusDropBehavior(t *testing.T) {
	bus := NewBus(metrics.NewNoopProvider())
	sub, err := bus.Subscribe(1)
	if err != nil {
		t.Fatalf("subscribe err: %v", err)
	}
	defer func() { _ = sub.Close() }()

	for i := 0; i < 5; i++ {
		_ = bus.Publish(Event{Category: CategoryPipeline, Type: "stage_complete"})
	}
	stats := bus.Stats()
	if stats.Published == 0 {
		t.Fatalf("expected published >0")
	}
	if stats.Dropped == 0 {
		t.Fatalf("expected drops >0, got %#v", stats)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus(metrics.NewNoopProvider())
	sub1, _ := bus.Subscribe(2)
	sub2, _ := bus.Subscribe(2)
	defer func() { _ = sub1.Close() }()
	defer func() { _ = sub2.Close() }()

	_ = bus.Publish(Event{Category: CategoryIngest, Type: "upload_received"})

	for _, sub := range []Subscription{sub1, sub2} {
		select {
		case got := <-sub.C():
			if got.Category != CategoryIngest {
				t.Fatalf("unexpected category %v", got.Category)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("timeout waiting for fan-out delivery")
		}
	}
}

func TestPublishRejectsMissingCategory(t *testing.T) {
	bus := NewBus(metrics.NewNoopProvider())
	if err := bus.Publish(Event{Type: "no_category"}); err == nil {
		t.Fatalf("expected error for missing category")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(metrics.NewNoopProvider())
	sub, _ := bus.Subscribe(1)
	if err := bus.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe err: %v", err)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}
