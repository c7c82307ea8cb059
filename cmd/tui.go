package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/taskwatch/internal/analysis"
	"github.com/twiced-technology-gmbh/taskwatch/internal/editor"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive task explorer",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Log lines would corrupt the screen: discard them, or write them to a
	// file next to the config with --verbose.
	if flagVerbose {
		f, err := tea.LogToFile(filepath.Join(cfg.Dir(), "taskwatch-debug.log"), "taskwatch")
		if err != nil {
			return err
		}
		defer f.Close()
		setupLogging(f)
	} else {
		setupLogging(io.Discard)
	}

	// Updates may arrive from other goroutines before the program exists.
	var program atomic.Pointer[tea.Program]
	send := func(msg tea.Msg) {
		if p := program.Load(); p != nil {
			p.Send(msg)
		}
	}

	s, err := openSession(cfg, sessionOptions{
		OnUpdate: func(analysis.Update) { send(tui.ReloadMsg{}) },
	})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := tui.NewExplorer(ctx, s.cmds, tui.Options{
		HasTaskfile: func(ctx context.Context) (bool, error) {
			return s.ws.HasTaskfile(ctx, cfg.Workspace.Pattern)
		},
		Editor: editor.FromEnv(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	program.Store(p)

	unsubscribe := s.cmds.OnChange(func() { send(tui.ReloadMsg{}) })
	defer unsubscribe()

	go s.watch(ctx)

	_, err = p.Run()
	slog.Debug("tui: exited", "error", err)
	return err
}
