package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type registerWorkerRequest struct {
	AgentID            string   `json:"agent_id"`
	AgentName          string   `json:"agent_name"`
	AgentType          string   `json:"agent_type"`
	Skills             []string `json:"skills"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
}

type workerResponse struct {
	CapabilityID       string   `json:"capability_id"`
	AgentID            string   `json:"agent_id"`
	AgentName          string   `json:"agent_name"`
	AgentType          string   `json:"agent_type"`
	Skills             []string `json:"skills"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
	CurrentTaskCount   int      `json:"current_task_count"`
	IsAvailable        bool     `json:"is_available"`
}

type workerListResponse struct {
	Capabilities []workerResponse `json:"capabilities"`
}

type delegateRequest struct {
	TaskID         string   `json:"task_id"`
	AssigneeID     string   `json:"assignee_id"`
	AssigneeType   string   `json:"assignee_type"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
}

type assignmentResponse struct {
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

type assignmentListResponse struct {
	Assignments []assignmentResponse `json:"assignments"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *client) registerWorker(req registerWorkerRequest) error {
	var worker workerResponse
	if err := c.do(http.MethodPost, "/api/capabilities", req, &worker); err != nil {
		return err
	}
	color.Green("Registered worker %s (%s)", worker.AgentID, worker.CapabilityID)
	printWorker(worker)
	return nil
}

func (c *client) listWorkers(agentType string, availableOnly bool) error {
	q := url.Values{}
	if agentType != "" {
		q.Set("agent_type", agentType)
	}
	if availableOnly {
		q.Set("available_only", "true")
	}
	path := "/api/capabilities"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list workerListResponse
	if err := c.do(http.MethodGet, path, nil, &list); err != nil {
		return err
	}
	if len(list.Capabilities) == 0 {
		fmt.Println("No workers registered.")
		return nil
	}
	for _, w := range list.Capabilities {
		printWorker(w)
	}
	return nil
}

func (c *client) delegate(req delegateRequest) error {
	var a assignmentResponse
	if err := c.do(http.MethodPost, "/api/assignments", req, &a); err != nil {
		return err
	}
	color.Green("Delegated task %s to %s", a.TaskID, a.AssigneeID)
	printAssignment(a)
	return nil
}

func (c *client) transition(id, action string, actualHours *float64) error {
	var body any
	if action == "complete" && actualHours != nil {
		body = map[string]*float64{"actual_hours": actualHours}
	}
	var a assignmentResponse
	if err := c.do(http.MethodPost, "/api/assignments/"+url.PathEscape(id)+"/"+action, body, &a); err != nil {
		return err
	}
	printAssignment(a)
	return nil
}

func (c *client) listAssignments(assigneeID, status string) error {
	q := url.Values{}
	q.Set("assignee_id", assigneeID)
	if status != "" {
		q.Set("status", status)
	}
	var list assignmentListResponse
	if err := c.do(http.MethodGet, "/api/assignments?"+q.Encode(), nil, &list); err != nil {
		return err
	}
	if len(list.Assignments) == 0 {
		fmt.Println("No assignments found.")
		return nil
	}
	for _, a := range list.Assignments {
		printAssignment(a)
	}
	return nil
}

func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			return fmt.Errorf("%s: %s", e.Code, e.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printWorker(w workerResponse) {
	avail := color.GreenString("available")
	if !w.IsAvailable {
		avail = color.YellowString("busy")
	}
	fmt.Printf("%s  %s [%s] %d/%d %s\n",
		color.CyanString(w.AgentID), w.AgentName, w.AgentType,
		w.CurrentTaskCount, w.MaxConcurrentTasks, avail)
	if len(w.Skills) > 0 {
		fmt.Printf("    skills: %s\n", strings.Join(w.Skills, ", "))
	}
}

func printAssignment(a assignmentResponse) {
	fmt.Printf("%s  task=%s assignee=%s (%s) %s\n",
		color.CyanString(a.AssignmentID), a.TaskID, a.AssigneeID,
		a.AssigneeType, statusColor(a.Status))
	fmt.Printf("    assigned: %s", a.AssignedAt.Local().Format(time.RFC3339))
	if a.AcceptedAt != nil {
		fmt.Printf("  accepted: %s", a.AcceptedAt.Local().Format(time.RFC3339))
	}
	if a.CompletedAt != nil {
		fmt.Printf("  completed: %s", a.CompletedAt.Local().Format(time.RFC3339))
	}
	fmt.Println()
	if a.EstimatedHours != nil || a.ActualHours != nil {
		fmt.Print("   ")
		if a.EstimatedHours != nil {
			fmt.Printf(" estimated: %.1fh", *a.EstimatedHours)
		}
		if a.ActualHours != nil {
			fmt.Printf(" actual: %.1fh", *a.ActualHours)
		}
		fmt.Println()
	}
}

func statusColor(status string) string {
	switch status {
	case "pending":
		return color.YellowString(status)
	case "in_progress":
		return color.BlueString(status)
	case "completed":
		return color.GreenString(status)
	case "cancelled":
		return color.RedString(status)
	default:
		return status
	}
}
