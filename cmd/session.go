package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/twiced-technology-gmbh/taskwatch/internal/analysis"
	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/config"
	"github.com/twiced-technology-gmbh/taskwatch/internal/history"
	"github.com/twiced-technology-gmbh/taskwatch/internal/resolver"
	"github.com/twiced-technology-gmbh/taskwatch/internal/runner"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
	"github.com/twiced-technology-gmbh/taskwatch/internal/watcher"
	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

// sessionOptions customizes the collaborators of a session.
type sessionOptions struct {
	// Stdout and Stderr receive the output of task executions. Nil discards.
	Stdout io.Writer
	Stderr io.Writer

	Picker commands.Picker
	Opener commands.Opener

	// OnUpdate is called after the analysis service pushed an update.
	OnUpdate func(analysis.Update)
}

// session wires the command context from the config: the workspace, the
// resolver for the configured mode, the runner and the run history.
type session struct {
	cfg      *config.Config
	ws       *workspace.FS
	resolver resolver.Resolver
	runner   *runner.Runner
	history  *history.Log
	cmds     *commands.Commands

	client *analysis.Client
	remote *resolver.Remote
	cancel context.CancelFunc
}

// documentLister enumerates the Taskfiles of the workspace.
type documentLister interface {
	Documents(ctx context.Context) ([]string, error)
}

func openSession(cfg *config.Config, opts sessionOptions) (*session, error) {
	action, err := tree.ParseAction(cfg.Explorer.Action)
	if err != nil {
		return nil, clierr.Wrap(clierr.InvalidInput, err, "%s", err.Error())
	}

	folders := existingFolders(cfg.FolderPaths())
	if len(folders) == 0 {
		return nil, clierr.New(clierr.NoWorkspace, "no workspace folder exists").
			WithDetails(map[string]any{"folders": cfg.FolderPaths()})
	}
	ws, err := workspace.New(folders, cfg.Workspace.Exclude)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, ws: ws}

	// The language server lives as long as the session, not a command.
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	switch cfg.Mode {
	case config.ModeRemote:
		client, err := analysis.Spawn(ctx, cfg.LanguageServer.Command, cfg.LanguageServer.Args...)
		if err != nil {
			cancel()
			return nil, err
		}
		s.client = client
		s.remote = resolver.NewRemote(ws, cfg.Workspace.Pattern, client, opts.OnUpdate)
		s.resolver = s.remote
	default:
		s.resolver = resolver.NewLocal(ws, cfg.Workspace.Pattern)
	}

	s.runner = runner.New(cfg.Runner.Binary)
	s.runner.Stdout = opts.Stdout
	s.runner.Stderr = opts.Stderr

	if cfg.History.Enabled {
		s.history = history.Open(cfg.HistoryPath())
	}

	s.cmds = commands.New(&commands.Context{
		Resolver: s.resolver,
		Launcher: s.runner,
		Locator:  ws,
		Picker:   opts.Picker,
		Opener:   opts.Opener,
		History:  s.history,
		Action:   action,
	})

	slog.Debug("session: opened", "mode", cfg.Mode, "folders", folders, "pattern", cfg.Workspace.Pattern)
	return s, nil
}

// existingFolders drops configured folders that do not exist.
func existingFolders(paths []string) []string {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			slog.Warn("skipping missing workspace folder", "path", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// watch forces a refresh whenever a Taskfile changes and reloads the
// workspace folders when the config file changes. It returns when ctx is
// done. Failing to watch is logged, not fatal.
func (s *session) watch(ctx context.Context) {
	reload := make(chan struct{}, 1)
	if path := s.cfg.Path(); path != "" {
		cw, err := watcher.New(nil, watcher.Options{Files: []string{path}}, func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		})
		if err != nil {
			slog.Warn("config watching disabled", "error", err)
		} else {
			defer cw.Close()
			go cw.Run(ctx, nil)
		}
	}

	for {
		wctx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.watchTaskfiles(wctx, s.ws.Folders(), s.cfg.Workspace)
		}()

		select {
		case <-ctx.Done():
			stop()
			<-done
			return
		case <-reload:
			stop()
			<-done
			if err := s.reloadConfig(); err != nil {
				slog.Warn("config reload failed", "path", s.cfg.Path(), "error", err)
			}
		}
	}
}

func (s *session) watchTaskfiles(ctx context.Context, folders []workspace.Folder, wc config.WorkspaceConfig) {
	w, err := watcher.New(folders, watcher.Options{
		Pattern: wc.Pattern,
		Exclude: wc.Exclude,
	}, func() {
		s.cmds.Refresh(true)
	})
	if err != nil {
		slog.Warn("file watching disabled", "error", err)
		return
	}
	defer w.Close()
	w.Run(ctx, func(err error) {
		slog.Debug("watcher error", "error", err)
	})
}

// reloadConfig re-reads the config and applies its workspace folders and
// exclusions, then forces a refresh. The mode and the pattern are fixed for
// the lifetime of the session.
func (s *session) reloadConfig() error {
	cfg, err := config.Resolve(s.cfg.Dir())
	if err != nil {
		return err
	}
	folders := existingFolders(cfg.FolderPaths())
	if len(folders) == 0 {
		return clierr.New(clierr.NoWorkspace, "no workspace folder exists").
			WithDetails(map[string]any{"folders": cfg.FolderPaths()})
	}
	if err := s.ws.SetFolders(folders, cfg.Workspace.Exclude); err != nil {
		return err
	}
	if cfg.Mode != s.cfg.Mode || cfg.Workspace.Pattern != s.cfg.Workspace.Pattern {
		slog.Warn("mode and pattern changes apply after a restart")
		cfg.Mode, cfg.Workspace.Pattern = s.cfg.Mode, s.cfg.Workspace.Pattern
	}
	s.cfg = cfg
	slog.Debug("session: config reloaded", "folders", folders)
	s.cmds.Refresh(true)
	return nil
}

// documents lists the workspace Taskfiles through the resolver.
func (s *session) documents(ctx context.Context) ([]string, error) {
	l, ok := s.resolver.(documentLister)
	if !ok {
		return nil, fmt.Errorf("resolver %T cannot list documents", s.resolver)
	}
	return l.Documents(ctx)
}

// Close stops running tasks and the language server.
func (s *session) Close() {
	s.cmds.Close()
	if s.remote != nil {
		s.remote.Close()
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			slog.Debug("closing language server", "error", err)
		}
	}
	s.cancel()
}
