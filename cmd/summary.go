package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

var summaryCmd = &cobra.Command{
	Use:     "summary",
	Aliases: []string{"board"},
	Short:   "Show workspace summary",
	Long: `Displays a summary of the workspace: task and Taskfile counts, running tasks,
and the build/test breakdown.

Use --watch to keep the display live-updating. The summary re-renders whenever a
Taskfile changes or a task starts or stops. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().BoolP("watch", "w", false, "live-update the summary on changes")
	summaryCmd.Flags().String("group-by", "", "group summary by field ("+strings.Join(tree.ValidGroupByFields(), ", ")+")")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	groupBy, _ := cmd.Flags().GetString("group-by")
	if groupBy != "" && !slices.Contains(tree.ValidGroupByFields(), groupBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(tree.ValidGroupByFields(), ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	watch, _ := cmd.Flags().GetBool("watch")
	if err := renderSummary(cmd.Context(), s.cmds, groupBy, watch); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changed := make(chan struct{}, 1)
	unsubscribe := s.cmds.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	go s.watch(ctx)

	fmt.Fprintln(os.Stderr, "Watching for changes... (Ctrl+C to stop)")

	out := termenv.NewOutput(os.Stdout)
	redraw := outputFormat() != output.FormatJSON
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
		if redraw {
			out.ClearScreen()
		}
		if err := renderSummary(ctx, s.cmds, groupBy, true); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Warning: rendering summary: %v\n", err)
		}
	}
}

func renderSummary(ctx context.Context, cmds *commands.Commands, groupBy string, stream bool) error {
	tasks, err := cmds.Tasks(ctx)
	if err != nil {
		return err
	}

	if groupBy != "" {
		grouped := tree.GroupBy(tasks, groupBy, cmds.IsRunning)
		if outputFormat() == output.FormatJSON {
			return writeJSON(grouped, stream)
		}
		output.GroupedTable(os.Stdout, grouped)
		return nil
	}

	summary := tree.Summary(tasks, cmds.IsRunning)
	switch outputFormat() {
	case output.FormatJSON:
		return writeJSON(summary, stream)
	case output.FormatCompact:
		output.OverviewCompact(os.Stdout, summary)
	default:
		output.OverviewTable(os.Stdout, summary)
	}
	return nil
}

func writeJSON(data any, stream bool) error {
	if stream {
		return output.JSONLine(os.Stdout, data)
	}
	return output.JSON(os.Stdout, data)
}
