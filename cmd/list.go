package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
	"github.com/twiced-technology-gmbh/taskwatch/internal/scan"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/taskfile"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long:    `Lists the tasks of every Taskfile in the workspace, with optional filtering.`,
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringP("search", "s", "", "search tasks by name or label (case-insensitive)")
	listCmd.Flags().String("group", "", "filter by group (build, test)")
	listCmd.Flags().String("taskfile", "", "only tasks of this Taskfile")
	listCmd.Flags().Bool("running", false, "only running tasks")
	listCmd.Flags().Bool("vars", false, "list top-level variables instead of tasks")
	listCmd.Flags().String("sort", "", "sort by field ("+strings.Join(tree.ValidSortFields(), ", ")+")")
	listCmd.Flags().BoolP("reverse", "r", false, "reverse sort order")
	listCmd.Flags().IntP("limit", "n", 0, "maximum number of tasks to show")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if vars, _ := cmd.Flags().GetBool("vars"); vars {
		return listVars(ctx, s)
	}

	search, _ := cmd.Flags().GetString("search")
	group, _ := cmd.Flags().GetString("group")
	taskfilePath, _ := cmd.Flags().GetString("taskfile")
	sortBy, _ := cmd.Flags().GetString("sort")
	reverse, _ := cmd.Flags().GetBool("reverse")
	limit, _ := cmd.Flags().GetInt("limit")
	var runningOnly *bool
	if cmd.Flags().Changed("running") {
		v, _ := cmd.Flags().GetBool("running")
		runningOnly = &v
	}

	switch task.Group(group) {
	case task.GroupNone, task.GroupBuild, task.GroupTest:
	default:
		return clierr.Newf(clierr.InvalidInput, "invalid --group %q; valid: build, test", group)
	}
	if sortBy != "" && !slices.Contains(tree.ValidSortFields(), sortBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --sort field %q; valid: %s",
			sortBy, strings.Join(tree.ValidSortFields(), ", "))
	}
	if taskfilePath != "" {
		if taskfilePath, err = filepath.Abs(taskfilePath); err != nil {
			return clierr.Wrap(clierr.InvalidInput, err, "invalid --taskfile %q", taskfilePath)
		}
	}

	tasks, err := s.cmds.Tasks(ctx)
	if err != nil {
		return err
	}
	tasks = tree.Filter(tasks, tree.FilterOptions{
		Search:   search,
		Group:    task.Group(group),
		Taskfile: taskfilePath,
		Running:  runningOnly,
	}, s.cmds.IsRunning)
	if sortBy != "" || reverse {
		tree.Sort(tasks, sortBy, reverse)
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	return outputTaskList(taskViews(tasks, s.cmds.IsRunning))
}

// taskViews converts tasks, reading each Taskfile once for descriptions.
func taskViews(tasks []task.Info, running func(task.Info) bool) []output.TaskView {
	descs := make(map[string]map[string]taskfile.Details)
	views := make([]output.TaskView, 0, len(tasks))
	for _, t := range tasks {
		details, ok := descs[t.Scope]
		if !ok {
			details = describeFile(t.Scope)
			descs[t.Scope] = details
		}
		views = append(views, output.NewTaskView(t, running(t), details[t.Name()].Desc))
	}
	return views
}

// describeFile returns the task metadata of a Taskfile. Descriptions are
// decoration: failures are logged and yield none.
func describeFile(path string) map[string]taskfile.Details {
	data, err := os.ReadFile(path) //nolint:gosec // path was discovered in the workspace
	if err != nil {
		slog.Debug("list: reading taskfile", "path", path, "error", err)
		return nil
	}
	details, err := taskfile.Describe(string(data))
	if err != nil {
		slog.Debug("list: parsing taskfile", "path", path, "error", err)
		return nil
	}
	return details
}

func listVars(ctx context.Context, s *session) error {
	docs, err := s.documents(ctx)
	if err != nil {
		return err
	}
	vars := []output.VarView{}
	for _, doc := range docs {
		content, found, err := s.ws.ReadFile(doc)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		for _, ref := range scan.Extract(content).Vars {
			vars = append(vars, output.NewVarView(doc, ref))
		}
	}

	switch outputFormat() {
	case output.FormatJSON:
		return output.JSON(os.Stdout, vars)
	case output.FormatCompact:
		output.VarCompact(os.Stdout, vars)
	default:
		output.VarTable(os.Stdout, vars)
	}
	return nil
}

func outputTaskList(views []output.TaskView) error {
	switch outputFormat() {
	case output.FormatJSON:
		if views == nil {
			views = []output.TaskView{}
		}
		return output.JSON(os.Stdout, views)
	case output.FormatCompact:
		output.TaskCompact(os.Stdout, views)
	default:
		output.TaskTable(os.Stdout, views)
	}
	return nil
}
