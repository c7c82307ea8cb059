package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/twiced-technology-gmbh/taskwatch/internal/history"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boldStyle   = lipgloss.NewStyle().Bold(true)

	// Run state colors aligned with the explorer palette.
	stateStyles = map[string]lipgloss.Style{
		stateRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		stateIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	groupStyles = map[string]lipgloss.Style{
		string(task.GroupBuild): lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		string(task.GroupTest):  lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
	}

	actionStyles = map[string]lipgloss.Style{
		history.ActionRun:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		history.ActionWatch: lipgloss.NewStyle().Foreground(lipgloss.Color("44")),
		history.ActionStop:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		history.ActionEnd:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	folderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("110"))

	colorDisabled bool
)

const (
	stateRunning = "running"
	stateIdle    = "idle"
)

// DisableColor strips all styling from table output.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	boldStyle = lipgloss.NewStyle()
	stateStyles = map[string]lipgloss.Style{}
	groupStyles = map[string]lipgloss.Style{}
	actionStyles = map[string]lipgloss.Style{}
	folderStyle = lipgloss.NewStyle()
	colorDisabled = true
}

// ColorDisabled reports whether DisableColor was called.
func ColorDisabled() bool { return colorDisabled }

// TaskTable renders a list of tasks as a formatted table.
func TaskTable(w io.Writer, tasks []TaskView) {
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}

	const pad = 2
	nameW, groupW, stateW, fileW := 6, 7, 9, 10
	for _, t := range tasks {
		nameW = max(nameW, min(len(t.Name)+pad, 40)) //nolint:mnd // max name column width
		groupW = max(groupW, len(t.Group)+pad)
		fileW = max(fileW, min(len(location(t.Taskfile, t.Line))+pad, 60)) //nolint:mnd // max location column width
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
		nameW, "TASK", groupW, "GROUP", stateW, "STATE", fileW, "TASKFILE", "DESCRIPTION")
	fmt.Fprintln(w, headerStyle.Render(strings.TrimRight(header, " ")))

	for _, t := range tasks {
		group := string(t.Group)
		if group == "" {
			group = dimStyle.Render("--")
		} else {
			group = styledValue(group, groupStyles)
		}
		desc := t.Desc
		if desc == "" {
			desc = dimStyle.Render("--")
		}

		row := fmt.Sprintf("%s %s %s %s %s",
			padRight(truncate(t.Name, nameW-pad), nameW),
			padRight(group, groupW),
			padRight(styledValue(state(t.Running), stateStyles), stateW),
			padRight(location(t.Taskfile, t.Line), fileW),
			desc)
		fmt.Fprintln(w, strings.TrimRight(row, " "))
	}
}

// VarTable renders top-level variables as a formatted table.
func VarTable(w io.Writer, vars []VarView) {
	if len(vars) == 0 {
		fmt.Fprintln(os.Stderr, "No variables found.")
		return
	}

	const pad = 2
	nameW := 6
	for _, v := range vars {
		nameW = max(nameW, len(v.Name)+pad)
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s %s", nameW, "VAR", "TASKFILE")))
	for _, v := range vars {
		fmt.Fprintf(w, "%-*s %s\n", nameW, v.Name, location(v.Taskfile, v.Line))
	}
}

// TreeTable renders the explorer hierarchy with one node per line.
func TreeTable(w io.Writer, nodes []*tree.Node) {
	for _, row := range tree.Flatten(nodes) {
		indent := strings.Repeat("  ", row.Depth)
		fmt.Fprintln(w, indent+treeLabel(row.Node))
	}
}

func treeLabel(n *tree.Node) string {
	switch n.Kind {
	case tree.KindFolder:
		return folderStyle.Render(n.Label + "/")
	case tree.KindTaskfile:
		return boldStyle.Render(n.Label)
	case tree.KindTask:
		marker := "○"
		if n.Running {
			marker = styledAs("●", stateRunning, stateStyles)
		}
		label := marker + " " + n.Label
		if n.Group != task.GroupNone {
			label += " " + dimStyle.Render("("+string(n.Group)+")")
		}
		return label
	case tree.KindPlaceholder:
		return dimStyle.Render(n.Label)
	default:
		return n.Label
	}
}

// HistoryTable renders run history entries, oldest first.
func HistoryTable(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No history found.")
		return
	}

	header := fmt.Sprintf("%-19s %-6s %-20s %-5s %s", "TIME", "ACTION", "TASK", "EXIT", "TASKFILE")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, e := range entries {
		exit := dimStyle.Render("--")
		if e.ExitCode != nil {
			exit = strconv.Itoa(*e.ExitCode)
		}
		row := fmt.Sprintf("%-19s %s %-20s %s %s",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			padRight(styledValue(e.Action, actionStyles), 6), //nolint:mnd // column width
			truncate(e.Task, 20),                             //nolint:mnd // column width
			padRight(exit, 5),                                //nolint:mnd // column width
			e.Taskfile)
		fmt.Fprintln(w, strings.TrimRight(row, " "))
	}
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

func state(running bool) string {
	if running {
		return stateRunning
	}
	return stateIdle
}

func location(path string, line int) string {
	return path + ":" + strconv.Itoa(line)
}

func truncate(s string, n int) string {
	if len(s) <= n || n < 4 { //nolint:mnd // room for the ellipsis
		return s
	}
	return s[:n-3] + "..."
}

// padRight pads s with spaces to the given visible width, accounting for ANSI
// escape codes that are invisible but consume bytes.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

// styledValue renders s using a matching style from the map, or returns s unchanged.
func styledValue(s string, styles map[string]lipgloss.Style) string {
	return styledAs(s, s, styles)
}

// styledAs renders s with the style registered under key.
func styledAs(s, key string, styles map[string]lipgloss.Style) string {
	if st, ok := styles[key]; ok {
		return st.Render(s)
	}
	return s
}
