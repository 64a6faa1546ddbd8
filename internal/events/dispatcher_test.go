package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var received []Event
	d.Subscribe(EventCaseScheduled, func(ctx context.Context, e Event) error {
		received = append(received, e)
		return nil
	})

	event := Event{ID: "evt-1", Type: EventCaseScheduled, CaseID: "case-1"}
	if err := d.Publish(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	if received[0].CaseID != "case-1" {
		t.Fatalf("unexpected case id %q", received[0].CaseID)
	}
}

func TestDispatcherIgnoresOtherEventTypes(t *testing.T) {
	d := NewInMemoryDispatcher()

	calls := 0
	d.Subscribe(EventCaseResolved, func(ctx context.Context, e Event) error {
		calls++
		return nil
	})

	_ = d.Publish(context.Background(), Event{Type: EventReminderSent})
	if calls != 0 {
		t.Fatalf("handler fired for a type it never subscribed to")
	}
}

func TestDispatcherHandlerErrorDoesNotStopDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()

	second := false
	d.Subscribe(EventVisitCompleted, func(ctx context.Context, e Event) error {
		return errors.New("handler failed")
	})
	d.Subscribe(EventVisitCompleted, func(ctx context.Context, e Event) error {
		second = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventVisitCompleted}); err != nil {
		t.Fatal(err)
	}
	if !second {
		t.Fatal("second handler skipped after first handler error")
	}
}
