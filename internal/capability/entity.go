package capability

import "time"

// Capability is one registered worker. A worker may register more than
// once under the same AgentID; each registration is its own row with its
// own slot counter.
type Capability struct {
	ID                 string
	AgentID            string
	AgentName          string
	AgentType          string
	Skills             []string
	MaxConcurrentTasks int
	CurrentTaskCount   int
	IsAvailable        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
