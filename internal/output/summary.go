package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

const summaryColW = 16

// OverviewTable renders the workspace summary with a per-group breakdown.
func OverviewTable(w io.Writer, s tree.Overview) {
	fmt.Fprintln(w, boldStyle.Render("Workspace"))
	fmt.Fprintf(w, "Total: %d tasks in %d Taskfiles, %s\n\n",
		s.TotalTasks, s.TotalTaskfiles, styledAs(strconv.Itoa(s.RunningTasks)+" running", state(s.RunningTasks > 0), stateStyles))

	header := fmt.Sprintf("%-16s %6s %8s", "GROUP", "COUNT", "RUNNING")
	fmt.Fprintln(w, headerStyle.Render(header))
	for _, g := range s.Groups {
		fmt.Fprintf(w, "%s %6d %8d\n",
			padRight(styledValue(g.Group, groupStyles), summaryColW), g.Count, g.Running)
	}
}

// OverviewCompact renders the workspace summary in a few lines.
func OverviewCompact(w io.Writer, s tree.Overview) {
	fmt.Fprintf(w, "%d tasks, %d running, %d Taskfiles\n", s.TotalTasks, s.RunningTasks, s.TotalTaskfiles)
	parts := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		parts = append(parts, g.Group+"="+strconv.Itoa(g.Count))
	}
	fmt.Fprintln(w, "Groups: "+strings.Join(parts, " "))
}

// GroupedTable renders a grouped summary with per-group breakdowns.
func GroupedTable(w io.Writer, gs tree.GroupedSummary) {
	if len(gs.Groups) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}

	for i, g := range gs.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := fmt.Sprintf("%s (%d tasks, %d running)", g.Key, g.Total, g.Running)
		fmt.Fprintln(w, boldStyle.Render(title))

		for _, c := range g.Groups {
			if c.Count == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s %d\n", padRight(styledValue(c.Group, groupStyles), summaryColW), c.Count)
		}
	}
}
