package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/editor"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

var openCmd = &cobra.Command{
	Use:   "open [TASK]",
	Short: "Show where a task is declared",
	Long: `Prints the location of a task's declaration as path:line:col.
With --editor the location is opened in $VISUAL or $EDITOR.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOpen,
}

func init() {
	openCmd.Flags().BoolP("editor", "e", false, "open the location in $VISUAL or $EDITOR")
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := sessionOptions{Picker: newPicker()}
	if useEditor, _ := cmd.Flags().GetBool("editor"); useEditor {
		opts.Opener = editor.Opener{Editor: editor.FromEnv()}
	}
	s, err := openSession(cfg, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	var target *task.Info
	if len(args) == 1 {
		info, err := s.cmds.Find(ctx, args[0])
		if err != nil {
			return err
		}
		target = &info
	}

	loc, err := s.cmds.Open(ctx, target)
	if err != nil || loc == nil {
		return err
	}
	return printLocation(*loc)
}

// printLocation prints loc with one-based coordinates, like every other
// CLI view.
func printLocation(loc commands.Location) error {
	loc.Line++
	loc.Col++
	loc.EndLine++
	loc.EndCol++
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, loc)
	}
	fmt.Fprintf(os.Stdout, "%s:%d:%d\n", loc.Path, loc.Line, loc.Col)
	return nil
}
