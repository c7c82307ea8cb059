package tree

import (
	"sort"

	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// Sort and group-by fields.
const (
	FieldName     = "name"
	FieldTaskfile = "taskfile"
	FieldGroup    = "group"
	FieldDir      = "dir"
	FieldLine     = "line"

	ungrouped = "(other)"
)

// GroupCount holds the number of tasks in one task group.
type GroupCount struct {
	Group   string `json:"group"`
	Count   int    `json:"count"`
	Running int    `json:"running"`
}

// Overview is the aggregate workspace summary.
type Overview struct {
	TotalTasks     int          `json:"total_tasks"`
	RunningTasks   int          `json:"running_tasks"`
	TotalTaskfiles int          `json:"total_taskfiles"`
	Groups         []GroupCount `json:"groups"`
}

// GroupSummary is one group within a grouped view.
type GroupSummary struct {
	Key     string       `json:"key"`
	Groups  []GroupCount `json:"groups"`
	Total   int          `json:"total"`
	Running int          `json:"running"`
}

// GroupedSummary holds tasks grouped by a field.
type GroupedSummary struct {
	Field  string         `json:"field"`
	Groups []GroupSummary `json:"groups"`
}

// Summary counts tasks, running tasks and Taskfiles, and tasks per group.
func Summary(tasks []task.Info, running func(task.Info) bool) Overview {
	files := make(map[string]bool)
	for _, t := range tasks {
		files[t.Scope] = true
	}
	counts := groupCounts(tasks, running)
	runningTotal := 0
	for _, c := range counts {
		runningTotal += c.Running
	}
	return Overview{
		TotalTasks:     len(tasks),
		RunningTasks:   runningTotal,
		TotalTaskfiles: len(files),
		Groups:         counts,
	}
}

// GroupBy splits tasks by field (taskfile, dir or group) and summarizes
// each part.
func GroupBy(tasks []task.Info, field string, running func(task.Info) bool) GroupedSummary {
	groups := make(map[string][]task.Info)
	for _, t := range tasks {
		key := groupKey(t, field)
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := GroupedSummary{Field: field, Groups: make([]GroupSummary, 0, len(keys))}
	for _, key := range keys {
		s := Summary(groups[key], running)
		result.Groups = append(result.Groups, GroupSummary{
			Key:     key,
			Groups:  s.Groups,
			Total:   s.TotalTasks,
			Running: s.RunningTasks,
		})
	}
	return result
}

// ValidGroupByFields returns the list of valid --group-by field names.
func ValidGroupByFields() []string {
	return []string{FieldTaskfile, FieldDir, FieldGroup}
}

// ValidSortFields returns the list of valid --sort field names.
func ValidSortFields() []string {
	return []string{FieldName, FieldTaskfile, FieldGroup, FieldLine}
}

// Sort orders tasks by field. Ties keep their discovery order.
func Sort(tasks []task.Info, field string, reverse bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if reverse {
			a, b = b, a
		}
		return compareTasks(a, b, field)
	})
}

func compareTasks(a, b task.Info, field string) bool {
	switch field {
	case FieldTaskfile:
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		return a.Task.StartLine < b.Task.StartLine
	case FieldGroup:
		return groupName(a) < groupName(b)
	case FieldLine:
		return a.Task.StartLine < b.Task.StartLine
	default:
		return a.Name() < b.Name()
	}
}

func groupKey(t task.Info, field string) string {
	switch field {
	case FieldTaskfile:
		return t.Scope
	case FieldDir:
		return t.Dir()
	default:
		return groupName(t)
	}
}

func groupName(t task.Info) string {
	if g := task.InferGroup(t.Name()); g != task.GroupNone {
		return string(g)
	}
	return ungrouped
}

// groupCounts returns counts for build, test and other, in that order.
func groupCounts(tasks []task.Info, running func(task.Info) bool) []GroupCount {
	order := []string{string(task.GroupBuild), string(task.GroupTest), ungrouped}
	byName := make(map[string]*GroupCount, len(order))
	counts := make([]GroupCount, len(order))
	for i, name := range order {
		counts[i].Group = name
		byName[name] = &counts[i]
	}
	for _, t := range tasks {
		c := byName[groupName(t)]
		c.Count++
		if running(t) {
			c.Running++
		}
	}
	return counts
}
