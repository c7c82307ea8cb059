package task

import (
	"path/filepath"
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
)

// Label returns the human-readable pick label of a task: the name of the
// Taskfile's directory followed by the task name.
func Label(i Info) string {
	return filepath.Base(i.Dir()) + ": " + i.Task.Value
}

// FindByName looks a task up by name. The query may be a bare task name or a
// "<dir>: <name>" label as produced by Label. When several declarations match,
// the last one wins, mirroring mapping semantics in YAML.
func FindByName(infos []Info, query string) (Info, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Info{}, clierr.New(clierr.InvalidInput, "task name is required")
	}

	var (
		found Info
		ok    bool
	)
	for _, info := range infos {
		if info.Task.Value == query || Label(info) == query {
			found = info
			ok = true
		}
	}
	if !ok {
		return Info{}, clierr.Newf(clierr.TaskNotFound, "task not found: %s", query).
			WithDetails(map[string]any{"task": query})
	}
	return found, nil
}

// FindAt returns the task whose name span contains the given position in the
// document at scope.
func FindAt(infos []Info, scope string, line, col int) (Info, bool) {
	var (
		found Info
		ok    bool
	)
	for _, info := range infos {
		if info.Scope == scope && info.Task.Contains(line, col) {
			found = info
			ok = true
		}
	}
	return found, ok
}

// ForScope returns the tasks declared in the document at scope, in order.
func ForScope(infos []Info, scope string) []Info {
	var result []Info
	for _, info := range infos {
		if info.Scope == scope {
			result = append(result, info)
		}
	}
	return result
}

// ValidatePosition checks zero-based editor coordinates.
func ValidatePosition(line, col int) error {
	if line < 0 || col < 0 {
		return clierr.Newf(clierr.InvalidPosition, "invalid position %d:%d", line, col).
			WithDetails(map[string]any{"line": line, "col": col})
	}
	return nil
}
