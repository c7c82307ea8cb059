// Package scan locates task and variable declarations in a Taskfile without
// parsing it as YAML.
//
// The scanner makes a single pass over the text and recognizes direct
// children of the top-level "tasks:" and "vars:" sections by their indent of
// exactly two spaces. It does not understand flow-style mappings, tabs, or
// re-declared sections, and it never reports an error: unusual input yields
// whatever entries the heuristic manages to recognize.
package scan

import (
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// childIndent is the indent of a direct child of a top-level section.
const childIndent = 2

const (
	sectionTasks = "tasks"
	sectionVars  = "vars"
)

// Result holds the entries found in a document, in document order.
type Result struct {
	Tasks []task.Ref
	Vars  []task.Ref
}

// Extract scans text and returns the declared tasks and variables with the
// exact span of each name. Columns count runes from the start of the line.
// Duplicate names are returned as separate entries.
func Extract(text string) Result {
	var (
		res Result

		line, col  int
		indent     int
		token      strings.Builder
		tokenLen   int
		inTasks    bool
		inVars     bool
		skipToNext bool
	)

	for _, c := range text {
		switch {
		case skipToNext && c != '\n':
			// Rest of the line is a value, inline map or comment.
		case c == ' ':
			indent++
			col++
		case c == '\n':
			line++
			col = 0
			token.Reset()
			tokenLen = 0
			indent = 0
			skipToNext = false
		case c == ':':
			name := token.String()
			switch {
			case inTasks && indent == childIndent:
				res.Tasks = append(res.Tasks, ref(name, tokenLen, line, col))
			case inVars && indent == childIndent:
				res.Vars = append(res.Vars, ref(name, tokenLen, line, col))
			case !inTasks && strings.TrimSpace(name) == sectionTasks:
				inTasks = true
			case !inVars && strings.TrimSpace(name) == sectionVars:
				inVars = true
			}
			skipToNext = true
			token.Reset()
			tokenLen = 0
			col++
		default:
			token.WriteRune(c)
			tokenLen++
			col++
		}
	}

	return res
}

func ref(name string, length, line, col int) task.Ref {
	return task.Ref{
		Value:     name,
		StartLine: line,
		StartCol:  col - length,
		EndLine:   line,
		EndCol:    col,
	}
}

// Tasks scans text and binds every declared task to the document at scope.
func Tasks(scope, text string) []task.Info {
	refs := Extract(text).Tasks
	infos := make([]task.Info, 0, len(refs))
	for _, r := range refs {
		infos = append(infos, task.Info{Task: r, Scope: scope})
	}
	return infos
}
