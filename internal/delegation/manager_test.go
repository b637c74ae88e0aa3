package delegation_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusdeck/focusdeck/internal/capability"
	capabilityrepo "github.com/focusdeck/focusdeck/internal/capability/repositoryimpl"
	"github.com/focusdeck/focusdeck/internal/delegation"
	delegationrepo "github.com/focusdeck/focusdeck/internal/delegation/repositoryimpl"
	"github.com/focusdeck/focusdeck/internal/eventbus"
	"github.com/focusdeck/focusdeck/internal/sqlite"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

func newManager(t *testing.T) (*delegation.Manager, *capability.Registry, *eventbus.Bus) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	bus := eventbus.New()
	registry := capability.NewRegistry(capabilityrepo.NewSQLiteRepository(db.Conn()), bus)
	manager := delegation.NewManager(delegationrepo.NewSQLiteRepository(db.Conn()), registry, bus)
	return manager, registry, bus
}

func registerAgent(t *testing.T, registry *capability.Registry, agentID string, maxTasks int) {
	t.Helper()
	_, err := registry.Register(context.Background(), capability.RegisterRequest{
		AgentID:            agentID,
		AgentName:          agentID,
		AgentType:          "claude",
		MaxConcurrentTasks: maxTasks,
	})
	require.NoError(t, err)
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 2)

	estimated := 4.0
	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:         "TASK-001",
		AssigneeID:     "agent-1",
		AssigneeType:   delegation.AssigneeAgent,
		EstimatedHours: &estimated,
	})
	require.NoError(t, err)
	assert.Equal(t, delegation.StatusPending, a.Status)
	assert.Nil(t, a.AcceptedAt)
	assert.Nil(t, a.CompletedAt)

	c, err := registry.Lookup(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentTaskCount)
	assert.True(t, c.IsAvailable)

	a, err = manager.Accept(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, delegation.StatusInProgress, a.Status)
	require.NotNil(t, a.AcceptedAt)
	assert.False(t, a.AcceptedAt.Before(a.AssignedAt))

	actual := 3.5
	a, err = manager.Complete(ctx, a.ID, &actual)
	require.NoError(t, err)
	assert.Equal(t, delegation.StatusCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)
	assert.False(t, a.CompletedAt.Before(*a.AcceptedAt))
	require.NotNil(t, a.ActualHours)
	assert.Equal(t, 3.5, *a.ActualHours)
	require.NotNil(t, a.EstimatedHours)
	assert.Equal(t, 4.0, *a.EstimatedHours)

	c, err = registry.Lookup(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentTaskCount)
	assert.True(t, c.IsAvailable)
}

func TestManager_DelegateValidation(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	_, err := manager.Delegate(ctx, delegation.DelegateRequest{
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeType: delegation.AssigneeAgent,
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: "robot",
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestManager_DelegateUnknownAgent(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newManager(t)

	_, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "ghost",
		AssigneeType: delegation.AssigneeAgent,
	})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestManager_DelegateCapacityExhausted(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	first, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)

	_, err = manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-002",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	assert.True(t, cerr.IsCode(err, cerr.ResourceExhausted))

	// Finishing the first assignment frees the slot.
	_, err = manager.Accept(ctx, first.ID)
	require.NoError(t, err)
	_, err = manager.Complete(ctx, first.ID, nil)
	require.NoError(t, err)

	_, err = manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-002",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	assert.NoError(t, err)
}

func TestManager_DelegateHumanBypassesRegistry(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newManager(t)

	// Humans need no capability record and carry no ceiling.
	for i, taskID := range []string{"TASK-001", "TASK-002", "TASK-003"} {
		a, err := manager.Delegate(ctx, delegation.DelegateRequest{
			TaskID:       taskID,
			AssigneeID:   "alice",
			AssigneeType: delegation.AssigneeHuman,
		})
		require.NoError(t, err, "delegate %d", i)
		assert.Equal(t, delegation.StatusPending, a.Status)
	}

	assignments, err := manager.ListForAgent(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, assignments, 3)
}

func TestManager_AcceptTwice(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)

	_, err = manager.Accept(ctx, a.ID)
	require.NoError(t, err)
	_, err = manager.Accept(ctx, a.ID)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestManager_AcceptUnknownAssignment(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newManager(t)

	_, err := manager.Accept(ctx, "no-such-assignment")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestManager_CompleteWithoutAccept(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)

	_, err = manager.Complete(ctx, a.ID, nil)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestManager_CancelReleasesSlot(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)

	a, err = manager.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, delegation.StatusCancelled, a.Status)

	c, err := registry.Lookup(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentTaskCount)
	assert.True(t, c.IsAvailable)
}

func TestManager_CancelTerminal(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)
	_, err = manager.Accept(ctx, a.ID)
	require.NoError(t, err)
	_, err = manager.Complete(ctx, a.ID, nil)
	require.NoError(t, err)

	_, err = manager.Cancel(ctx, a.ID)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	// The slot must not be released a second time.
	c, err := registry.Lookup(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentTaskCount)
}

func TestManager_ListForAgent(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 3)

	var ids []string
	for _, taskID := range []string{"TASK-001", "TASK-002", "TASK-003"} {
		a, err := manager.Delegate(ctx, delegation.DelegateRequest{
			TaskID:       taskID,
			AssigneeID:   "agent-1",
			AssigneeType: delegation.AssigneeAgent,
		})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := manager.Accept(ctx, ids[0])
	require.NoError(t, err)

	all, err := manager.ListForAgent(ctx, "agent-1", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "TASK-001", all[0].TaskID)

	pending, err := manager.ListForAgent(ctx, "agent-1", delegation.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	inProgress, err := manager.ListForAgent(ctx, "agent-1", delegation.StatusInProgress)
	require.NoError(t, err)
	assert.Len(t, inProgress, 1)

	none, err := manager.ListForAgent(ctx, "unknown", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = manager.ListForAgent(ctx, "agent-1", "done")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestManager_Events(t *testing.T) {
	ctx := context.Background()
	manager, registry, bus := newManager(t)
	_, ch := bus.Subscribe(16)
	registerAgent(t, registry, "agent-1", 1)

	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)
	_, err = manager.Accept(ctx, a.ID)
	require.NoError(t, err)
	_, err = manager.Complete(ctx, a.ID, nil)
	require.NoError(t, err)

	want := []eventbus.Type{
		eventbus.TypeCapabilityRegistered,
		eventbus.TypeAssignmentCreated,
		eventbus.TypeAssignmentAccepted,
		eventbus.TypeAssignmentCompleted,
	}
	for _, wantType := range want {
		select {
		case ev := <-ch:
			assert.Equal(t, wantType, ev.Type)
			if wantType != eventbus.TypeCapabilityRegistered {
				assert.Equal(t, a.ID, ev.ResourceID)
				assert.Equal(t, "TASK-001", ev.Metadata["task_id"])
			}
		case <-time.After(time.Second):
			t.Fatalf("did not receive %s event", wantType)
		}
	}
}

func TestManager_ConcurrentAccept(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 1)

	a, err := manager.Delegate(ctx, delegation.DelegateRequest{
		TaskID:       "TASK-001",
		AssigneeID:   "agent-1",
		AssigneeType: delegation.AssigneeAgent,
	})
	require.NoError(t, err)

	var accepted atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			if _, err := manager.Accept(ctx, a.ID); err == nil {
				accepted.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())

	got, err := manager.ListForAgent(ctx, "agent-1", delegation.StatusInProgress)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotNil(t, got[0].AcceptedAt)
}

func TestManager_ConcurrentDelegateRespectsCeiling(t *testing.T) {
	ctx := context.Background()
	manager, registry, _ := newManager(t)
	registerAgent(t, registry, "agent-1", 3)

	var delegated, exhausted atomic.Int32
	var wg conc.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Go(func() {
			_, err := manager.Delegate(ctx, delegation.DelegateRequest{
				TaskID:       "TASK-" + string(rune('A'+i)),
				AssigneeID:   "agent-1",
				AssigneeType: delegation.AssigneeAgent,
			})
			switch {
			case err == nil:
				delegated.Add(1)
			case cerr.IsCode(err, cerr.ResourceExhausted):
				exhausted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(3), delegated.Load())
	assert.Equal(t, int32(7), exhausted.Load())

	c, err := registry.Lookup(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 3, c.CurrentTaskCount)
	assert.False(t, c.IsAvailable)
}
