package delegation

import "time"

// Status is the assignment lifecycle state. Transitions are validated by
// CanTransitionTo; the repository enforces them again with conditional
// updates so concurrent transitions serialize in the store.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// AssigneeType distinguishes capacity-limited automated agents from
// humans, who carry no concurrency ceiling.
type AssigneeType string

const (
	AssigneeAgent AssigneeType = "agent"
	AssigneeHuman AssigneeType = "human"
)

func (t AssigneeType) Valid() bool {
	return t == AssigneeAgent || t == AssigneeHuman
}

// Assignment is one worker's commitment to one task. TaskID and
// AssigneeID are immutable after creation; reassignment means creating a
// new assignment.
type Assignment struct {
	ID             string
	TaskID         string
	AssigneeID     string
	AssigneeType   AssigneeType
	Status         Status
	AssignedAt     time.Time
	AcceptedAt     *time.Time
	CompletedAt    *time.Time
	EstimatedHours *float64
	ActualHours    *float64
}
