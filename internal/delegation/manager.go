package delegation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/focusdeck/focusdeck/internal/capability"
	"github.com/focusdeck/focusdeck/internal/eventbus"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

// Manager enforces the assignment state machine and keeps the registry's
// load counters consistent with it. It is the only writer of assignment
// rows and the only caller of slot reservation and release.
type Manager struct {
	repo     Repository
	registry *capability.Registry
	eventBus *eventbus.Bus
}

func NewManager(repo Repository, registry *capability.Registry, eventBus *eventbus.Bus) *Manager {
	return &Manager{
		repo:     repo,
		registry: registry,
		eventBus: eventBus,
	}
}

type DelegateRequest struct {
	TaskID         string
	AssigneeID     string
	AssigneeType   AssigneeType
	EstimatedHours *float64
}

// Delegate creates a pending assignment for a task against a worker.
// Agent assignees must have a free slot; humans are not capacity-limited.
func (m *Manager) Delegate(ctx context.Context, req DelegateRequest) (*Assignment, error) {
	if req.TaskID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "task_id is required", nil)
	}
	if req.AssigneeID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "assignee_id is required", nil)
	}
	if !req.AssigneeType.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("assignee_type must be %q or %q", AssigneeAgent, AssigneeHuman), nil)
	}

	if req.AssigneeType == AssigneeAgent {
		reserved, err := m.registry.TryReserveSlot(ctx, req.AssigneeID)
		if err != nil {
			return nil, err
		}
		if !reserved {
			return nil, cerr.NewError(cerr.ResourceExhausted,
				fmt.Sprintf("agent %s has no available slot", req.AssigneeID), nil)
		}
	}

	a := &Assignment{
		ID:             ulid.Make().String(),
		TaskID:         req.TaskID,
		AssigneeID:     req.AssigneeID,
		AssigneeType:   req.AssigneeType,
		Status:         StatusPending,
		AssignedAt:     time.Now(),
		EstimatedHours: req.EstimatedHours,
	}
	if err := m.repo.Create(ctx, a); err != nil {
		// Hand the slot back so a failed insert cannot leak capacity.
		if req.AssigneeType == AssigneeAgent {
			if relErr := m.registry.ReleaseSlot(ctx, req.AssigneeID); relErr != nil {
				slog.ErrorContext(ctx, "failed to release slot after create failure",
					"agent_id", req.AssigneeID, "error", relErr)
			}
		}
		return nil, err
	}

	m.publish(eventbus.TypeAssignmentCreated, a)
	return a, nil
}

// Accept moves a pending assignment to in_progress and stamps accepted_at.
func (m *Manager) Accept(ctx context.Context, id string) (*Assignment, error) {
	ok, err := m.repo.MarkAccepted(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := m.repo.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, cerr.NewError(cerr.FailedPrecondition, "assignment already accepted", nil)
	}
	a, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.publish(eventbus.TypeAssignmentAccepted, a)
	return a, nil
}

// Complete moves an in_progress assignment to completed, records actual
// effort, and returns the agent's slot.
func (m *Manager) Complete(ctx context.Context, id string, actualHours *float64) (*Assignment, error) {
	ok, err := m.repo.MarkCompleted(ctx, id, time.Now(), actualHours)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := m.repo.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, cerr.NewError(cerr.FailedPrecondition,
			"assignment must be accepted before it can be completed", nil)
	}
	a, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.releaseSlot(ctx, a)
	m.publish(eventbus.TypeAssignmentCompleted, a)
	return a, nil
}

// Cancel moves a non-terminal assignment to cancelled. The agent's slot
// is released because the reservation was taken at delegation time.
func (m *Manager) Cancel(ctx context.Context, id string) (*Assignment, error) {
	ok, err := m.repo.MarkCancelled(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := m.repo.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, cerr.NewError(cerr.FailedPrecondition, "assignment already finished", nil)
	}
	a, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.releaseSlot(ctx, a)
	m.publish(eventbus.TypeAssignmentCancelled, a)
	return a, nil
}

// ListForAgent is a pure read; an unknown worker yields an empty list.
func (m *Manager) ListForAgent(ctx context.Context, assigneeID string, status Status) ([]*Assignment, error) {
	if status != "" && !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("unknown status %q", status), nil)
	}
	return m.repo.ListByAssignee(ctx, assigneeID, status)
}

func (m *Manager) releaseSlot(ctx context.Context, a *Assignment) {
	if a.AssigneeType != AssigneeAgent {
		return
	}
	if err := m.registry.ReleaseSlot(ctx, a.AssigneeID); err != nil {
		slog.ErrorContext(ctx, "failed to release agent slot",
			"assignment_id", a.ID, "agent_id", a.AssigneeID, "error", err)
	}
}

func (m *Manager) publish(eventType eventbus.Type, a *Assignment) {
	m.eventBus.PublishNew(eventType, a.ID, map[string]string{
		"task_id":       a.TaskID,
		"assignee_id":   a.AssigneeID,
		"assignee_type": string(a.AssigneeType),
		"status":        string(a.Status),
	})
}
