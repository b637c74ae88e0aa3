package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	_, ch := bus.Subscribe(4)

	bus.PublishNew(TypeAssignmentCreated, "assignment-1", map[string]string{"task_id": "TASK-001"})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeAssignmentCreated, ev.Type)
		assert.Equal(t, "assignment-1", ev.ResourceID)
		assert.Equal(t, "TASK-001", ev.Metadata["task_id"])
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.CreatedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	_, ch1 := bus.Subscribe(1)
	_, ch2 := bus.Subscribe(1)

	bus.PublishNew(TypeAssignmentAccepted, "assignment-1", nil)

	for i, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, TypeAssignmentAccepted, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	// The channel is closed and no longer receives.
	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.PublishNew(TypeAssignmentCancelled, "assignment-1", nil)
}

func TestBus_DropsWhenBufferFull(t *testing.T) {
	bus := New()
	_, ch := bus.Subscribe(1)

	bus.PublishNew(TypeAssignmentCreated, "first", nil)
	bus.PublishNew(TypeAssignmentCreated, "second", nil)

	ev := <-ch
	assert.Equal(t, "first", ev.ResourceID)

	select {
	case ev := <-ch:
		t.Fatalf("expected second event to be dropped, got %s", ev.ResourceID)
	default:
	}
}
