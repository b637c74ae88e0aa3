package delegation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/focusdeck/focusdeck/pkg/cerr"
)

// Server exposes the assignment lifecycle over JSON. It is a thin
// boundary: decoding, calling the manager, encoding. All state machine
// and capacity rules live in the manager.
type Server struct {
	manager *Manager
}

func NewServer(manager *Manager) *Server {
	return &Server{manager: manager}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/assignments", s.handleDelegate)
	r.Get("/assignments", s.handleList)
	r.Post("/assignments/{id}/accept", s.handleAccept)
	r.Post("/assignments/{id}/complete", s.handleComplete)
	r.Post("/assignments/{id}/cancel", s.handleCancel)
}

type delegateRequest struct {
	TaskID         string   `json:"task_id"`
	AssigneeID     string   `json:"assignee_id"`
	AssigneeType   string   `json:"assignee_type"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
}

type completeRequest struct {
	ActualHours *float64 `json:"actual_hours,omitempty"`
}

type assignmentJSON struct {
	AssignmentID   string     `json:"assignment_id"`
	TaskID         string     `json:"task_id"`
	AssigneeID     string     `json:"assignee_id"`
	AssigneeType   string     `json:"assignee_type"`
	Status         string     `json:"status"`
	AssignedAt     time.Time  `json:"assigned_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
}

type listAssignmentsResponse struct {
	Assignments []*assignmentJSON `json:"assignments"`
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req delegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	a, err := s.manager.Delegate(ctx, DelegateRequest{
		TaskID:         req.TaskID,
		AssigneeID:     req.AssigneeID,
		AssigneeType:   AssigneeType(req.AssigneeType),
		EstimatedHours: req.EstimatedHours,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, toJSON(a))
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.manager.Accept(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, toJSON(a))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req completeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
			return
		}
	}
	a, err := s.manager.Complete(ctx, chi.URLParam(r, "id"), req.ActualHours)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, toJSON(a))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.manager.Cancel(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, toJSON(a))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assigneeID := r.URL.Query().Get("assignee_id")
	if assigneeID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "assignee_id is required", nil)
		return
	}
	assignments, err := s.manager.ListForAgent(ctx, assigneeID, Status(r.URL.Query().Get("status")))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	out := make([]*assignmentJSON, len(assignments))
	for i, a := range assignments {
		out[i] = toJSON(a)
	}
	cerr.SetJSONResponse(ctx, &listAssignmentsResponse{Assignments: out})
}

func toJSON(a *Assignment) *assignmentJSON {
	return &assignmentJSON{
		AssignmentID:   a.ID,
		TaskID:         a.TaskID,
		AssigneeID:     a.AssigneeID,
		AssigneeType:   string(a.AssigneeType),
		Status:         string(a.Status),
		AssignedAt:     a.AssignedAt,
		AcceptedAt:     a.AcceptedAt,
		CompletedAt:    a.CompletedAt,
		EstimatedHours: a.EstimatedHours,
		ActualHours:    a.ActualHours,
	}
}
