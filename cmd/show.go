package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
	"github.com/twiced-technology-gmbh/taskwatch/internal/taskfile"
)

var showCmd = &cobra.Command{
	Use:   "show TASK",
	Short: "Show task details",
	Long:  `Displays a task's description, summary, dependencies and commands.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// taskDetail is the JSON form of show.
type taskDetail struct {
	output.TaskView
	Summary string   `json:"summary,omitempty"`
	Cmds    []string `json:"cmds,omitempty"`
	Deps    []string `json:"deps,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.cmds.Find(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	details, err := taskfile.Lookup(info.Scope, info.Name())
	if err != nil {
		// The declaration was found by scanning; metadata is optional.
		slog.Warn("task details unavailable", "taskfile", info.Scope, "error", err)
	}
	view := output.NewTaskView(info, s.cmds.IsRunning(info), details.Desc)

	switch outputFormat() {
	case output.FormatJSON:
		return output.JSON(os.Stdout, taskDetail{
			TaskView: view,
			Summary:  details.Summary,
			Cmds:     details.Cmds,
			Deps:     details.Deps,
		})
	case output.FormatCompact:
		output.TaskCompact(os.Stdout, []output.TaskView{view})
		return nil
	default:
		width := 0
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil { //nolint:gosec // file descriptors fit in int
			width = w
		}
		return output.Markdown(os.Stdout, output.TaskMarkdown(view, details), width)
	}
}
