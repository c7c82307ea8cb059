package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the task tree",
	Long: `Prints the workspace as the explorer shows it: folders, Taskfiles and tasks.
With --watch the tree is printed again whenever a Taskfile changes.`,
	Args: cobra.NoArgs,
	RunE: runTree,
}

func init() {
	treeCmd.Flags().BoolP("watch", "w", false, "re-render when Taskfiles change")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, _ []string) error {
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
	if !watch {
		return printTree(cmd.Context(), os.Stdout, s.cmds, false)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
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

	out := termenv.NewOutput(os.Stdout)
	redraw := term.IsTerminal(int(os.Stdout.Fd())) && outputFormat() != output.FormatJSON //nolint:gosec // file descriptors fit in int
	for {
		if redraw {
			out.ClearScreen()
		}
		if err := printTree(ctx, os.Stdout, s.cmds, true); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// printTree renders the tree once. With stream, JSON is written as one line
// per render.
func printTree(ctx context.Context, w io.Writer, cmds *commands.Commands, stream bool) error {
	nodes, err := cmds.Tree(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	switch outputFormat() {
	case output.FormatJSON:
		if stream {
			return output.JSONLine(w, nodes)
		}
		return output.JSON(w, nodes)
	case output.FormatCompact:
		output.TreeCompact(w, nodes)
	default:
		output.TreeTable(w, nodes)
	}
	return nil
}
