// Package cmd implements the taskwatch CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/config"
	"github.com/twiced-technology-gmbh/taskwatch/internal/output"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagJSON    bool
	flagTable   bool
	flagCompact bool
	flagDir     string
	flagNoColor bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taskwatch",
	Short: "Terminal explorer for Taskfile projects",
	Long: `taskwatch discovers the tasks declared in the Taskfile.yml files of a workspace,
shows them as a tree and runs, watches and stops them with the task runner.
Just run taskwatch to open the explorer.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runTUI,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagNoColor || os.Getenv("NO_COLOR") != "" {
			output.DisableColor()
		}
		setupLogging(os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "output as table")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "compact one-line-per-record output")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "oneline", false, "alias for --compact")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "directory to resolve the config and workspace from")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
}

// Execute runs the root command.
func Execute() {
	_, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}

	// Handle SilentError: exit with code, no output.
	var silent *clierr.SilentError
	if errors.As(err, &silent) {
		os.Exit(silent.Code)
	}

	if outputFormat() == output.FormatJSON {
		var cliErr *clierr.Error
		if errors.As(err, &cliErr) {
			output.JSONError(os.Stdout, cliErr.Code, cliErr.Message, cliErr.Details)
			os.Exit(cliErr.ExitCode())
		}
		// Unknown error: report as INTERNAL_ERROR.
		output.JSONError(os.Stdout, clierr.InternalError, err.Error(), nil)
		os.Exit(2) //nolint:mnd // exit code 2 for internal errors
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		os.Exit(cliErr.ExitCode())
	}
	os.Exit(1)
}

// setupLogging installs the default slog logger: warnings only, or debug
// output with --verbose.
func setupLogging(w io.Writer) {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// startDir returns the directory config resolution starts from.
func startDir() (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return cwd, nil
}

// loadConfig resolves the project config, the user config or defaults.
func loadConfig() (*config.Config, error) {
	dir, err := startDir()
	if err != nil {
		return nil, err
	}
	return config.Resolve(dir)
}

// outputFormat returns the detected output format from flags/env.
func outputFormat() output.Format {
	return output.Detect(flagJSON, flagTable, flagCompact)
}
