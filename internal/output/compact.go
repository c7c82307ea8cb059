package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/history"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

// TaskCompact renders a list of tasks in one-line-per-record compact format.
func TaskCompact(w io.Writer, tasks []TaskView) {
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}

	for _, t := range tasks {
		fmt.Fprintln(w, formatTaskLine(t))
	}
}

// VarCompact renders variables one per line.
func VarCompact(w io.Writer, vars []VarView) {
	if len(vars) == 0 {
		fmt.Fprintln(os.Stderr, "No variables found.")
		return
	}
	for _, v := range vars {
		fmt.Fprintln(w, v.Name+" "+location(v.Taskfile, v.Line))
	}
}

// TreeCompact renders the tree as one line per task, prefixed with the
// Taskfile label.
func TreeCompact(w io.Writer, nodes []*tree.Node) {
	var taskfile string
	for _, row := range tree.Flatten(nodes) {
		switch row.Node.Kind {
		case tree.KindTaskfile:
			taskfile = row.Node.Label
		case tree.KindTask:
			line := taskfile + ": " + row.Node.Label
			if row.Node.Running {
				line += " [running]"
			}
			fmt.Fprintln(w, line)
		case tree.KindPlaceholder:
			fmt.Fprintln(os.Stderr, row.Node.Label)
		case tree.KindFolder:
		}
	}
}

// HistoryCompact renders history entries one per line.
func HistoryCompact(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No history found.")
		return
	}
	for _, e := range entries {
		line := e.Timestamp.Local().Format("2006-01-02T15:04:05") + " " + e.Action + " " + e.Task
		if e.ExitCode != nil {
			line += " exit:" + strconv.Itoa(*e.ExitCode)
		}
		fmt.Fprintln(w, line)
	}
}

// formatTaskLine builds the one-line representation of a task.
func formatTaskLine(t TaskView) string {
	parts := []string{t.Label, "[" + state(t.Running) + "]"}
	if t.Group != "" {
		parts = append(parts, "("+string(t.Group)+")")
	}
	parts = append(parts, location(t.Taskfile, t.Line))
	if t.Desc != "" {
		parts = append(parts, "- "+t.Desc)
	}
	return strings.Join(parts, " ")
}
