// Package task defines the task references discovered in Taskfiles and the
// composite identity used to address a task across a workspace.
package task

import (
	"path/filepath"
	"strings"
)

// keySeparator joins a scope and a task name into a composite key.
const keySeparator = ":"

// Ref is a named entry located within a document. Coordinates are zero-based
// and delimit exactly the name token, not the colon or the value.
type Ref struct {
	Value     string `json:"value"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// Contains reports whether the zero-based position lies within the span.
// The end column is exclusive.
func (r Ref) Contains(line, col int) bool {
	if line < r.StartLine || line > r.EndLine {
		return false
	}
	if line == r.StartLine && col < r.StartCol {
		return false
	}
	if line == r.EndLine && col >= r.EndCol {
		return false
	}
	return true
}

// Info is a Ref bound to the document it was found in.
type Info struct {
	Task Ref `json:"task"`

	// Scope is the absolute path of the owning Taskfile.
	Scope string `json:"scope"`
}

// Name returns the task's name.
func (i Info) Name() string { return i.Task.Value }

// Dir returns the directory the task runs in.
func (i Info) Dir() string { return filepath.Dir(i.Scope) }

// Key identifies one task instance in a workspace.
type Key string

// KeyOf returns the composite identity of a task: scope and name.
func KeyOf(i Info) Key {
	return Key(i.Scope + keySeparator + i.Task.Value)
}

// Group categorizes tasks by what they appear to do.
type Group string

const (
	GroupBuild Group = "build"
	GroupTest  Group = "test"
	GroupNone  Group = ""
)

var (
	buildNames = []string{"build", "compile", "watch"}
	testNames  = []string{"test"}
)

// InferGroup guesses the task group from its name. Build patterns are
// checked before test patterns.
func InferGroup(name string) Group {
	lower := strings.ToLower(name)
	for _, n := range buildNames {
		if strings.Contains(lower, n) {
			return GroupBuild
		}
	}
	for _, n := range testNames {
		if strings.Contains(lower, n) {
			return GroupTest
		}
	}
	return GroupNone
}
