package capability

import "context"

type ListFilter struct {
	AgentType     string
	AvailableOnly bool
}

type Repository interface {
	Create(ctx context.Context, c *Capability) error
	Get(ctx context.Context, id string) (*Capability, error)
	// FindByAgentID returns the oldest capability registered under agentID.
	FindByAgentID(ctx context.Context, agentID string) (*Capability, error)
	List(ctx context.Context, filter ListFilter) ([]*Capability, error)
	// ReserveSlot atomically increments the task counter of the oldest
	// capability for agentID that still has headroom. It returns false
	// when every capability for the agent is at its ceiling.
	ReserveSlot(ctx context.Context, agentID string) (bool, error)
	// ReleaseSlot decrements the task counter of the oldest capability for
	// agentID with a non-zero counter. Counters never go below zero.
	ReleaseSlot(ctx context.Context, agentID string) error
}
