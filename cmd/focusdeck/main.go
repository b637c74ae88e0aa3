package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app    = kingpin.New("focusdeck", "Task delegation client for the focusdeck backend")
	server = app.Flag("server", "Server base URL").Default("http://localhost:3200").Envar("FOCUSDECK_SERVER").String()
	apiKey = app.Flag("api-key", "API key").Envar("FOCUSDECK_API_KEY").String()

	// Worker commands
	workerCmd = app.Command("worker", "Worker registry commands")

	workerRegisterCmd    = workerCmd.Command("register", "Register a worker")
	workerRegisterID     = workerRegisterCmd.Arg("agent-id", "Agent ID").Required().String()
	workerRegisterName   = workerRegisterCmd.Flag("name", "Display name").String()
	workerRegisterType   = workerRegisterCmd.Flag("type", "Agent type").Default("agent").String()
	workerRegisterSkills = workerRegisterCmd.Flag("skill", "Skill tag (repeatable)").Strings()
	workerRegisterMax    = workerRegisterCmd.Flag("max-tasks", "Max concurrent tasks").Default("1").Int()

	workerListCmd       = workerCmd.Command("list", "List registered workers")
	workerListType      = workerListCmd.Flag("type", "Filter by agent type").String()
	workerListAvailable = workerListCmd.Flag("available", "Only available workers").Bool()

	// Assignment commands
	delegateCmd       = app.Command("delegate", "Delegate a task to a worker")
	delegateTaskID    = delegateCmd.Arg("task-id", "Task ID").Required().String()
	delegateAssignee  = delegateCmd.Arg("assignee-id", "Assignee ID").Required().String()
	delegateType      = delegateCmd.Flag("type", "Assignee type (agent or human)").Default("agent").String()
	delegateEstimated = delegateCmd.Flag("estimated-hours", "Estimated effort").Float64()

	acceptCmd = app.Command("accept", "Accept a pending assignment")
	acceptID  = acceptCmd.Arg("assignment-id", "Assignment ID").Required().String()

	completeCmd    = app.Command("complete", "Complete an accepted assignment")
	completeID     = completeCmd.Arg("assignment-id", "Assignment ID").Required().String()
	completeActual = completeCmd.Flag("actual-hours", "Actual effort").Float64()

	cancelCmd = app.Command("cancel", "Cancel an assignment")
	cancelID  = cancelCmd.Arg("assignment-id", "Assignment ID").Required().String()

	listCmd        = app.Command("list", "List assignments for a worker")
	listAssigneeID = listCmd.Arg("assignee-id", "Assignee ID").Required().String()
	listStatus     = listCmd.Flag("status", "Filter by status").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := newClient(*server, *apiKey)

	var err error
	switch command {
	case workerRegisterCmd.FullCommand():
		name := *workerRegisterName
		if name == "" {
			name = *workerRegisterID
		}
		err = client.registerWorker(registerWorkerRequest{
			AgentID:            *workerRegisterID,
			AgentName:          name,
			AgentType:          *workerRegisterType,
			Skills:             *workerRegisterSkills,
			MaxConcurrentTasks: *workerRegisterMax,
		})
	case workerListCmd.FullCommand():
		err = client.listWorkers(*workerListType, *workerListAvailable)
	case delegateCmd.FullCommand():
		err = client.delegate(delegateRequest{
			TaskID:         *delegateTaskID,
			AssigneeID:     *delegateAssignee,
			AssigneeType:   *delegateType,
			EstimatedHours: flagFloat(delegateEstimated),
		})
	case acceptCmd.FullCommand():
		err = client.transition(*acceptID, "accept", nil)
	case completeCmd.FullCommand():
		err = client.transition(*completeID, "complete", flagFloat(completeActual))
	case cancelCmd.FullCommand():
		err = client.transition(*cancelID, "cancel", nil)
	case listCmd.FullCommand():
		err = client.listAssignments(*listAssigneeID, strings.ToLower(*listStatus))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func flagFloat(f *float64) *float64 {
	if f == nil || *f == 0 {
		return nil
	}
	return f
}
