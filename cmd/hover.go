package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
)

var hoverCmd = &cobra.Command{
	Use:   "hover FILE LINE COL",
	Short: "Show the actions for a position in a Taskfile",
	Long: `Prints the hover actions for the task whose name spans LINE:COL in FILE,
e.g. "Run task | Watch task". LINE and COL are one-based.`,
	Args: cobra.ExactArgs(3), //nolint:mnd // file, line and column
	RunE: runHover,
}

func init() {
	rootCmd.AddCommand(hoverCmd)
}

func runHover(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return clierr.Wrap(clierr.InvalidInput, err, "invalid file %q", args[0])
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return clierr.Newf(clierr.InvalidPosition, "invalid line %q", args[1])
	}
	col, err := strconv.Atoi(args[2])
	if err != nil {
		return clierr.Newf(clierr.InvalidPosition, "invalid column %q", args[2])
	}
	if _, err := os.Stat(path); err != nil {
		return clierr.Newf(clierr.TaskfileNotFound, "taskfile not found: %s", path).
			WithDetails(map[string]any{"path": path})
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

	h, err := s.cmds.Hover(cmd.Context(), path, line-1, col-1)
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, h)
	}
	if h == nil {
		fmt.Fprintf(os.Stderr, "No task at %s:%d:%d.\n", path, line, col)
		return nil
	}
	fmt.Fprintln(os.Stdout, h.Text())
	return nil
}
