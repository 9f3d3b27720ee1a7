package orchestrator

import (
	"context"
	"testing"

	"github.com/ShayCichocki/quorum/internal/agent"
	"github.com/ShayCichocki/quorum/pkg/models"
)

func TestEventBusNoSubscribers(t *testing.T) {
	b := NewEventBus()
	if b.HasSubscribers() {
		t.Error("new bus should have no subscribers")
	}
	// Must not block.
	for i := 0; i < 100; i++ {
		b.Emit(Event{Type: EventStepStarted})
	}
	if b.DroppedCount() != 0 {
		t.Errorf("nothing should be dropped without subscribers, got %d", b.DroppedCount())
	}
}

func TestEventBusFanOut(t *testing.T) {
	b := NewEventBus()
	a := b.Subscribe(4)
	c := b.Subscribe(4)

	b.Emit(Event{Type: EventStepStarted, StepID: "s"})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		if e.Type != EventStepStarted || e.StepID != "s" {
			t.Errorf("unexpected event %+v", e)
		}
		if e.Timestamp.IsZero() {
			t.Error("expected timestamp to be filled in")
		}
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	b := NewEventBus()
	ch := b.Subscribe(1)

	b.Emit(Event{Type: EventStepStarted})
	b.Emit(Event{Type: EventStepCompleted}) // waits 100ms, then drops

	if b.DroppedCount() != 1 {
		t.Errorf("expected 1 dropped event, got %d", b.DroppedCount())
	}
	if e := <-ch; e.Type != EventStepStarted {
		t.Errorf("expected first event kept, got %s", e.Type)
	}
}

func TestEventBusClose(t *testing.T) {
	b := NewEventBus()
	ch := b.Subscribe(1)
	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected channel closed")
	}
	b.Emit(Event{Type: EventRunDone}) // ignored after close

	late := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscribing after close should return a closed channel")
	}
}

func TestSchedulersShareEventBus(t *testing.T) {
	bus := NewEventBus()
	events := bus.Subscribe(32)
	reg := registry(t, map[models.AgentID]agent.Capability{models.AgentClaude: agent.Text("ok")})

	first := NewScheduler(reg, WithEventBus(bus))
	second := NewScheduler(reg, WithEventBus(bus))
	if first.Events() != bus || second.Events() != bus {
		t.Fatal("expected both schedulers to use the shared bus")
	}

	first.Execute(context.Background(), plan("p", step("a", "x")))
	second.Execute(context.Background(), plan("p", step("b", "y")))
	bus.Close()

	seen := make(map[string]bool)
	for ev := range events {
		if ev.Type == EventStepCompleted {
			seen[ev.StepID] = true
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("expected completions from both schedulers, got %v", seen)
	}
}
