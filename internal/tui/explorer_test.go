package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/commands"
	"github.com/twiced-technology-gmbh/taskwatch/internal/resolver"
	"github.com/twiced-technology-gmbh/taskwatch/internal/runstate"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

type fakeExec struct{ done chan struct{} }

func (e *fakeExec) Done() <-chan struct{} { return e.done }
func (e *fakeExec) Terminate() error      { return nil }

type fakeLauncher struct{ launched []string }

func (l *fakeLauncher) Launch(_ context.Context, info task.Info, watch bool) (runstate.Execution, error) {
	name := info.Name()
	if watch {
		name += " --watch"
	}
	l.launched = append(l.launched, name)
	return &fakeExec{done: make(chan struct{})}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newTestExplorer(t *testing.T, files map[string]string) (*Explorer, *fakeLauncher) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		writeFile(t, filepath.Join(root, name), content)
	}

	ws, err := workspace.New([]string{root}, nil)
	require.NoError(t, err)
	launcher := &fakeLauncher{}
	cmds := commands.New(&commands.Context{
		Resolver: resolver.NewLocal(ws, resolver.DefaultPattern),
		Launcher: launcher,
		Locator:  ws,
	})
	t.Cleanup(cmds.Close)

	e := NewExplorer(context.Background(), cmds, Options{})
	e.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	exec(e, e.Init())
	return e, launcher
}

var sampleFiles = map[string]string{
	"Taskfile.yml":     "version: '3'\ntasks:\n  build:\n    desc: Build it\n  test:\n",
	"api/Taskfile.yml": "tasks:\n  serve:\n",
}

// exec runs cmd and feeds its message back, as the bubbletea runtime would.
func exec(e *Explorer, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		e.Update(msg)
	}
}

func press(e *Explorer, keys string) tea.Cmd {
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	_, cmd := e.Update(msg)
	return cmd
}

func labels(e *Explorer) []string {
	out := make([]string, len(e.rows))
	for i, r := range e.rows {
		out[i] = r.Node.Label
	}
	return out
}

func TestExplorerLoadsTree(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)

	assert.False(t, e.loading)
	assert.Equal(t, []string{"Taskfile.yml", "build", "test", "api/Taskfile.yml", "serve"}, labels(e))
	assert.Contains(t, e.View(), "3 tasks, 0 running")
}

func TestExplorerRunAndStop(t *testing.T) {
	e, launcher := newTestExplorer(t, sampleFiles)

	press(e, "j")
	assert.Contains(t, e.View(), "Run task | Watch task")

	exec(e, press(e, "w"))
	assert.Equal(t, []string{"build --watch"}, launcher.launched)
	assert.True(t, strings.HasPrefix(e.status, "Watching "))
	require.NotNil(t, e.selected())
	assert.True(t, e.selected().Running)

	press(e, "j")
	press(e, "k")
	assert.Contains(t, e.View(), "Task running | Stop task")

	exec(e, press(e, "s"))
	assert.False(t, e.selected().Running)
	assert.NoError(t, e.err)
}

func TestExplorerRunTwiceShowsError(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)
	press(e, "j")

	exec(e, press(e, "r"))
	exec(e, press(e, "r"))

	require.Error(t, e.err)
	assert.Contains(t, e.View(), "already running")
}

func TestExplorerSearch(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)

	press(e, "/")
	for _, r := range "serv" {
		press(e, string(r))
	}
	assert.Equal(t, []string{"api/Taskfile.yml", "serve"}, labels(e))

	press(e, "enter")
	assert.Equal(t, viewTree, e.view)
	assert.Equal(t, "serv", e.query)

	press(e, "esc")
	assert.Empty(t, e.query)
	assert.Len(t, e.rows, 5)
}

func TestExplorerSearchWithoutMatches(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)

	press(e, "/")
	press(e, "x")
	press(e, "y")

	require.Len(t, e.rows, 1)
	assert.Equal(t, tree.KindPlaceholder, e.rows[0].Node.Kind)
}

func TestExplorerCollapse(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)

	press(e, "h")
	assert.Equal(t, []string{"Taskfile.yml", "api/Taskfile.yml", "serve"}, labels(e))

	press(e, "enter")
	assert.Len(t, e.rows, 5)

	// h on a task moves to its Taskfile.
	press(e, "j")
	press(e, "j")
	press(e, "h")
	assert.Equal(t, 0, e.cursor)
}

func TestExplorerOpenShowsLocation(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)
	press(e, "j")
	press(e, "j")

	exec(e, press(e, "o"))

	assert.True(t, strings.HasSuffix(e.status, "Taskfile.yml:5:3"), e.status)
}

func TestExplorerActivateRuns(t *testing.T) {
	e, launcher := newTestExplorer(t, sampleFiles)
	e.cmds.Context().Action = tree.ActionRun
	press(e, "j")

	exec(e, press(e, "enter"))

	assert.Equal(t, []string{"build"}, launcher.launched)
}

func TestExplorerDetail(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)
	press(e, "j")

	exec(e, press(e, "d"))
	require.NoError(t, e.err)
	assert.Equal(t, viewDetail, e.view)
	assert.Contains(t, e.View(), "Build")

	press(e, "esc")
	assert.Equal(t, viewTree, e.view)
}

func TestExplorerEmptyWorkspace(t *testing.T) {
	e, _ := newTestExplorer(t, map[string]string{"README.md": "hi"})

	assert.False(t, e.hasTaskfile)
	assert.Contains(t, e.View(), "No Taskfile found")
}

func TestExplorerReloadPicksUpChanges(t *testing.T) {
	e, _ := newTestExplorer(t, sampleFiles)
	scope := e.rows[0].Node.Path
	writeFile(t, scope, "tasks:\n  lint:\n")

	e.cmds.Refresh(true)
	_, cmd := e.Update(ReloadMsg{})
	exec(e, cmd)

	assert.Equal(t, []string{"Taskfile.yml", "lint", "api/Taskfile.yml", "serve"}, labels(e))
}
