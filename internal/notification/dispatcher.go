package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/focusdeck/focusdeck/internal/delegation"
	"github.com/focusdeck/focusdeck/internal/eventbus"
)

// Dispatcher pushes a web notification when a human worker receives a
// delegation. Agent assignees poll their own queue; only humans need the
// nudge.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
}

func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.TypeAssignmentCreated {
				d.handleAssignmentCreated(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handleAssignmentCreated(ctx context.Context, event *eventbus.Event) {
	if event.Metadata["assignee_type"] != string(delegation.AssigneeHuman) {
		return
	}
	d.sender.SendToAll(ctx, &Payload{
		Title: "New task assigned",
		Body:  fmt.Sprintf("Task %s was delegated to %s", event.Metadata["task_id"], event.Metadata["assignee_id"]),
		URL:   fmt.Sprintf("/assignments/%s", event.ResourceID),
		Tag:   event.ResourceID,
	})
}
