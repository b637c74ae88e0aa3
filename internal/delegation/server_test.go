package delegation_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusdeck/focusdeck/internal/capability"
	"github.com/focusdeck/focusdeck/internal/delegation"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

func newTestRouter(t *testing.T) (http.Handler, *capability.Registry) {
	t.Helper()
	manager, registry, _ := newManager(t)
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	delegation.NewServer(manager).Routes(r)
	return r, registry
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_DelegateAndTransitions(t *testing.T) {
	router, registry := newTestRouter(t)
	registerAgent(t, registry, "agent-1", 1)

	rec := doJSON(t, router, http.MethodPost, "/assignments",
		`{"task_id":"TASK-001","assignee_id":"agent-1","assignee_type":"agent","estimated_hours":2.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		AssignmentID   string   `json:"assignment_id"`
		Status         string   `json:"status"`
		EstimatedHours *float64 `json:"estimated_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.AssignmentID)
	assert.Equal(t, "pending", created.Status)
	require.NotNil(t, created.EstimatedHours)
	assert.Equal(t, 2.5, *created.EstimatedHours)

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+created.AssignmentID+"/accept", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+created.AssignmentID+"/complete",
		`{"actual_hours":3.0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var completed struct {
		Status      string   `json:"status"`
		ActualHours *float64 `json:"actual_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "completed", completed.Status)
	require.NotNil(t, completed.ActualHours)
	assert.Equal(t, 3.0, *completed.ActualHours)
}

func TestServer_ErrorStatusMapping(t *testing.T) {
	router, registry := newTestRouter(t)
	registerAgent(t, registry, "agent-1", 1)

	// Malformed body.
	rec := doJSON(t, router, http.MethodPost, "/assignments", `{"task_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing fields.
	rec = doJSON(t, router, http.MethodPost, "/assignments", `{"assignee_id":"agent-1","assignee_type":"agent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown agent.
	rec = doJSON(t, router, http.MethodPost, "/assignments",
		`{"task_id":"TASK-001","assignee_id":"ghost","assignee_type":"agent"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Capacity exhausted.
	rec = doJSON(t, router, http.MethodPost, "/assignments",
		`{"task_id":"TASK-001","assignee_id":"agent-1","assignee_type":"agent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/assignments",
		`{"task_id":"TASK-002","assignee_id":"agent-1","assignee_type":"agent"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ResourceExhausted", body.Code)
	assert.Contains(t, body.Message, "agent-1")
}

func TestServer_TransitionConflicts(t *testing.T) {
	router, registry := newTestRouter(t)
	registerAgent(t, registry, "agent-1", 1)

	rec := doJSON(t, router, http.MethodPost, "/assignments",
		`{"task_id":"TASK-001","assignee_id":"agent-1","assignee_type":"agent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		AssignmentID string `json:"assignment_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Completing before accepting is a state conflict.
	rec = doJSON(t, router, http.MethodPost, "/assignments/"+created.AssignmentID+"/complete", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+created.AssignmentID+"/accept", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/assignments/"+created.AssignmentID+"/accept", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown assignment.
	rec = doJSON(t, router, http.MethodPost, "/assignments/unknown/accept", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_List(t *testing.T) {
	router, registry := newTestRouter(t)
	registerAgent(t, registry, "agent-1", 2)

	rec := doJSON(t, router, http.MethodGet, "/assignments", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, taskID := range []string{"TASK-001", "TASK-002"} {
		rec = doJSON(t, router, http.MethodPost, "/assignments",
			`{"task_id":"`+taskID+`","assignee_id":"agent-1","assignee_type":"agent"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/assignments?assignee_id=agent-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Assignments []struct {
			TaskID string `json:"task_id"`
		} `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Assignments, 2)
	assert.Equal(t, "TASK-001", list.Assignments[0].TaskID)

	rec = doJSON(t, router, http.MethodGet, "/assignments?assignee_id=agent-1&status=done", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/assignments?assignee_id=nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Assignments)
}
