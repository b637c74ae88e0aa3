package capability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/focusdeck/focusdeck/pkg/cerr"
)

// Server exposes worker onboarding and discovery over JSON.
type Server struct {
	registry *Registry
}

func NewServer(registry *Registry) *Server {
	return &Server{registry: registry}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/capabilities", s.handleRegister)
	r.Get("/capabilities", s.handleList)
}

type registerRequest struct {
	AgentID            string   `json:"agent_id"`
	AgentName          string   `json:"agent_name"`
	AgentType          string   `json:"agent_type"`
	Skills             []string `json:"skills"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
}

type capabilityJSON struct {
	CapabilityID       string    `json:"capability_id"`
	AgentID            string    `json:"agent_id"`
	AgentName          string    `json:"agent_name"`
	AgentType          string    `json:"agent_type"`
	Skills             []string  `json:"skills"`
	MaxConcurrentTasks int       `json:"max_concurrent_tasks"`
	CurrentTaskCount   int       `json:"current_task_count"`
	IsAvailable        bool      `json:"is_available"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type listResponse struct {
	Capabilities []*capabilityJSON `json:"capabilities"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	c, err := s.registry.Register(ctx, RegisterRequest{
		AgentID:            req.AgentID,
		AgentName:          req.AgentName,
		AgentType:          req.AgentType,
		Skills:             req.Skills,
		MaxConcurrentTasks: req.MaxConcurrentTasks,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, toJSON(c))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := ListFilter{
		AgentType:     r.URL.Query().Get("agent_type"),
		AvailableOnly: r.URL.Query().Get("available_only") == "true",
	}
	caps, err := s.registry.List(ctx, filter)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	out := make([]*capabilityJSON, len(caps))
	for i, c := range caps {
		out[i] = toJSON(c)
	}
	cerr.SetJSONResponse(ctx, &listResponse{Capabilities: out})
}

func toJSON(c *Capability) *capabilityJSON {
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	return &capabilityJSON{
		CapabilityID:       c.ID,
		AgentID:            c.AgentID,
		AgentName:          c.AgentName,
		AgentType:          c.AgentType,
		Skills:             skills,
		MaxConcurrentTasks: c.MaxConcurrentTasks,
		CurrentTaskCount:   c.CurrentTaskCount,
		IsAvailable:        c.IsAvailable,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
