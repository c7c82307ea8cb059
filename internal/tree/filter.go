package tree

import (
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// FilterOptions defines which tasks to include.
type FilterOptions struct {
	Search   string     // case-insensitive substring match on name and label
	Group    task.Group // exact group; empty matches all
	Taskfile string     // only tasks of this Taskfile
	Running  *bool      // nil=no filter, true=only running, false=only idle
}

// Filter returns tasks matching all specified criteria (AND logic). running
// is consulted only when opts.Running is set.
func Filter(tasks []task.Info, opts FilterOptions, running func(task.Info) bool) []task.Info {
	var result []task.Info
	for _, t := range tasks {
		if matchesFilter(t, opts, running) {
			result = append(result, t)
		}
	}
	return result
}

func matchesFilter(t task.Info, opts FilterOptions, running func(task.Info) bool) bool {
	if opts.Search != "" && !matchesSearch(t, opts.Search) {
		return false
	}
	if opts.Group != "" && task.InferGroup(t.Name()) != opts.Group {
		return false
	}
	if opts.Taskfile != "" && t.Scope != opts.Taskfile {
		return false
	}
	if opts.Running != nil {
		isRunning := running != nil && running(t)
		if isRunning != *opts.Running {
			return false
		}
	}
	return true
}

func matchesSearch(t task.Info, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.Name()), q) ||
		strings.Contains(strings.ToLower(task.Label(t)), q)
}
