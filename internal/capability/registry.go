package capability

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/focusdeck/focusdeck/internal/eventbus"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

// Registry is the source of truth for which workers exist and how loaded
// they are. All load-counter mutation funnels through TryReserveSlot and
// ReleaseSlot; the delegation manager is the only caller of those.
type Registry struct {
	repo     Repository
	eventBus *eventbus.Bus
}

func NewRegistry(repo Repository, eventBus *eventbus.Bus) *Registry {
	return &Registry{
		repo:     repo,
		eventBus: eventBus,
	}
}

type RegisterRequest struct {
	AgentID            string
	AgentName          string
	AgentType          string
	Skills             []string
	MaxConcurrentTasks int
}

// Register creates a new capability record. Duplicate agent IDs are
// allowed; re-registration creates an independent record.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*Capability, error) {
	if req.AgentID == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "agent_id is required", nil)
	}
	maxTasks := req.MaxConcurrentTasks
	if maxTasks == 0 {
		maxTasks = 1
	}
	if maxTasks < 1 {
		return nil, cerr.NewError(cerr.InvalidArgument, "max_concurrent_tasks must be at least 1", nil)
	}

	now := time.Now()
	c := &Capability{
		ID:                 ulid.Make().String(),
		AgentID:            req.AgentID,
		AgentName:          req.AgentName,
		AgentType:          req.AgentType,
		Skills:             req.Skills,
		MaxConcurrentTasks: maxTasks,
		CurrentTaskCount:   0,
		IsAvailable:        true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	r.eventBus.PublishNew(
		eventbus.TypeCapabilityRegistered,
		c.ID,
		map[string]string{"agent_id": c.AgentID, "agent_type": c.AgentType},
	)
	return c, nil
}

func (r *Registry) List(ctx context.Context, filter ListFilter) ([]*Capability, error) {
	return r.repo.List(ctx, filter)
}

// Lookup returns the oldest capability registered under agentID.
func (r *Registry) Lookup(ctx context.Context, agentID string) (*Capability, error) {
	return r.repo.FindByAgentID(ctx, agentID)
}

// TryReserveSlot is the sole admission-control point. A false result means
// the agent exists but has no free slot; an unknown agent is an error.
func (r *Registry) TryReserveSlot(ctx context.Context, agentID string) (bool, error) {
	return r.repo.ReserveSlot(ctx, agentID)
}

// ReleaseSlot returns one slot to the agent. The delegation manager calls
// this exactly once per assignment that reached a terminal state after a
// successful reservation.
func (r *Registry) ReleaseSlot(ctx context.Context, agentID string) error {
	return r.repo.ReleaseSlot(ctx, agentID)
}
