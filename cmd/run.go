package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
	"github.com/twiced-technology-gmbh/taskwatch/internal/runner"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

var runCmd = &cobra.Command{
	Use:   "run [TASK]",
	Short: "Run a task in the foreground",
	Long: `Runs a task with the task runner in its Taskfile's directory and streams its output.
TASK is a task name or a "<dir>: <name>" label; without it you pick one interactively.
Ctrl+C stops the task.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("watch-task", false, "re-run the task when its sources change (task --watch)")
	runCmd.Flags().SetNormalizeFunc(normalizeRunFlags)
	rootCmd.AddCommand(runCmd)
}

// normalizeRunFlags accepts --task-watch as an alias of --watch-task.
func normalizeRunFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "task-watch" {
		name = "watch-task"
	}
	return pflag.NormalizedName(name)
}

// runResult is the JSON outcome of a run.
type runResult struct {
	Task      output.TaskView `json:"task"`
	Execution string          `json:"execution"`
	ExitCode  int             `json:"exit_code"`
	Stopped   bool            `json:"stopped"`
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, sessionOptions{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Picker: newPicker(),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if outputFormat() == output.FormatJSON {
		// Keep stdout parseable.
		s.runner.Stdout = os.Stderr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var target *task.Info
	if len(args) == 1 {
		info, err := s.cmds.Find(ctx, args[0])
		if err != nil {
			return err
		}
		target = &info
	}

	watch, _ := cmd.Flags().GetBool("watch-task")
	// The process outlives the signal context: Ctrl+C stops it through Stop.
	exec, err := s.cmds.Run(context.WithoutCancel(ctx), target, watch)
	if err != nil {
		return err
	}
	if exec == nil {
		return nil // pick cancelled
	}
	proc, ok := exec.(*runner.Process)
	if !ok {
		return clierr.Newf(clierr.InternalError, "unexpected execution %T", exec)
	}

	stopped := false
	select {
	case <-proc.Done():
	case <-ctx.Done():
		stopped = true
		slog.Debug("run: interrupted, stopping", "task", proc.Info.Name())
		if err := s.cmds.Stop(context.WithoutCancel(ctx), &proc.Info); err != nil {
			return err
		}
		<-proc.Done()
	}

	code := proc.ExitCode()
	if outputFormat() == output.FormatJSON {
		if err := output.JSON(os.Stdout, runResult{
			Task:      output.NewTaskView(proc.Info, false, ""),
			Execution: proc.ID,
			ExitCode:  code,
			Stopped:   stopped,
		}); err != nil {
			return err
		}
	}
	return exitStatus(code, stopped)
}

// exitStatus maps a finished run to the CLI's exit: the task's own code, 1
// for a task killed by a signal (-1), and success for a run the user
// stopped.
func exitStatus(code int, stopped bool) error {
	if code == 0 || stopped {
		return nil
	}
	return &clierr.SilentError{Code: max(code, 1)}
}
