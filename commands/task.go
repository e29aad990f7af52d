package commands

import (
	"fmt"
	"strconv"
	"strings"

	"tasklist/tasklist"
)

// parseTaskID parses a task id argument, printing an error when it is not
// an integer
func parseTaskID(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
	if err != nil {
		fmt.Printf("Error: invalid task ID %q (expected a number)\n", arg)
		return 0, false
	}
	return id, true
}

func reportPersistError(err error) {
	if err != nil {
		fmt.Printf("Warning: changes were not saved: %v\n", err)
	}
}

func init() {
	Register(&Command{
		Name:        "/add",
		Description: "Add a task to the top of the list",
		Params: []Param{
			{Name: "text", Type: ParamTypeString, Description: "The task text", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /add <task text>")
				return false
			}

			task, created, err := GetStore().Add(args[0])
			reportPersistError(err)
			if created {
				fmt.Printf("Added task: %s (ID: %d, priority: %s)\n", task.Text, task.ID, task.Priority)
			}
			return false
		},
	})

	Register(&Command{
		Name:        "/list",
		Description: "List tasks visible under the current filter and search, with their IDs and counts",
		Handler: func(args []string) bool {
			GetStore().Refresh()
			return false
		},
	})

	Register(&Command{
		Name:        "/toggle",
		Description: "Toggle a task between completed and pending",
		Params: []Param{
			{Name: "task_id", Type: ParamTypeString, Description: "The numeric ID of the task to toggle", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /toggle <task-id>")
				return false
			}

			id, ok := parseTaskID(args[0])
			if !ok {
				return false
			}

			found, err := GetStore().Toggle(id)
			reportPersistError(err)
			if !found {
				fmt.Printf("No task with ID %d\n", id)
				return false
			}

			task, _ := GetStore().Get(id)
			state := "pending"
			if task.Completed {
				state = "completed"
			}
			fmt.Printf("Marked task %d as %s\n", id, state)
			return false
		},
	})

	Register(&Command{
		Name:        "/edit",
		Description: "Change the text of a task",
		Params: []Param{
			{Name: "task_id", Type: ParamTypeString, Description: "The numeric ID of the task to edit", Required: true},
			{Name: "text", Type: ParamTypeString, Description: "The new task text", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) < 2 {
				fmt.Println("Usage: /edit <task-id> <new text>")
				return false
			}

			id, ok := parseTaskID(args[0])
			if !ok {
				return false
			}

			changed, err := GetStore().Edit(id, args[1])
			reportPersistError(err)
			if !changed {
				if _, ok := GetStore().Get(id); ok {
					fmt.Println("Error: task text cannot be empty")
				} else {
					fmt.Printf("No task with ID %d\n", id)
				}
				return false
			}

			fmt.Printf("Updated task %d\n", id)
			return false
		},
	})

	Register(&Command{
		Name:        "/delete",
		Description: "Delete a task",
		Destructive: true,
		Params: []Param{
			{Name: "task_id", Type: ParamTypeString, Description: "The numeric ID of the task to delete", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Println("Usage: /delete <task-id>")
				return false
			}

			id, ok := parseTaskID(args[0])
			if !ok {
				return false
			}

			removed, err := GetStore().Delete(id)
			reportPersistError(err)
			if !removed {
				fmt.Printf("No task with ID %d\n", id)
				return false
			}

			fmt.Printf("Deleted task: %d\n", id)
			return false
		},
	})

	Register(&Command{
		Name:        "/filter",
		Description: "Show all, active, or completed tasks",
		Params: []Param{
			{Name: "mode", Type: ParamTypeString, Description: "One of: all, active, completed", Required: true},
		},
		Handler: func(args []string) bool {
			if len(args) == 0 {
				fmt.Printf("Usage: /filter <all|active|completed> (current: %s)\n", GetStore().Filter())
				return false
			}

			filter, err := tasklist.ParseFilter(args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return false
			}

			GetStore().SetFilter(filter)
			return false
		},
	})

	Register(&Command{
		Name:        "/search",
		Description: "Show only tasks whose text contains a term (case-insensitive). Omit the term to clear the search.",
		Params: []Param{
			{Name: "term", Type: ParamTypeString, Description: "Text to search for; empty clears the search", Required: false},
		},
		Handler: func(args []string) bool {
			var term string
			if len(args) > 0 {
				term = args[0]
			}
			GetStore().SetSearch(term)
			return false
		},
	})

	Register(&Command{
		Name:        "/stats",
		Description: "Show total, completed, and pending task counts",
		Handler: func(args []string) bool {
			s := GetStore().Stats()
			fmt.Printf("Total: %d | Completed: %d | Pending: %d\n", s.Total, s.Completed, s.Pending)
			return false
		},
	})
}
