package commands

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/history"
	"github.com/twiced-technology-gmbh/taskwatch/internal/runstate"
	"github.com/twiced-technology-gmbh/taskwatch/internal/scan"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

const (
	rootDoc = "/ws/Taskfile.yml"
	apiDoc  = "/ws/api/Taskfile.yml"
)

// fakeResolver serves scanned documents from memory.
type fakeResolver struct {
	docs        map[string]string
	order       []string
	err         error
	invalidated atomic.Int32
}

func (r *fakeResolver) ProvideTasks(ctx context.Context) ([]task.Info, error) {
	if r.err != nil {
		return nil, r.err
	}
	var all []task.Info
	for _, p := range r.order {
		infos, _ := r.TasksForDocument(ctx, p)
		all = append(all, infos...)
	}
	return all, nil
}

func (r *fakeResolver) TasksForDocument(_ context.Context, path string) ([]task.Info, error) {
	return scan.Tasks(path, r.docs[path]), nil
}

func (r *fakeResolver) Invalidate() { r.invalidated.Add(1) }

type fakeExec struct {
	id         string
	done       chan struct{}
	terminated atomic.Int32
}

func (e *fakeExec) Done() <-chan struct{} { return e.done }
func (e *fakeExec) Terminate() error {
	e.terminated.Add(1)
	return nil
}
func (e *fakeExec) ExecutionID() string { return e.id }
func (e *fakeExec) ExitCode() int       { return 0 }

type fakeLauncher struct {
	mu       sync.Mutex
	launched []string
	execs    []*fakeExec
	err      error
}

func (l *fakeLauncher) Launch(_ context.Context, info task.Info, watch bool) (runstate.Execution, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	args := info.Name()
	if watch {
		args += " --watch"
	}
	l.launched = append(l.launched, args)
	e := &fakeExec{id: info.Name(), done: make(chan struct{})}
	l.execs = append(l.execs, e)
	return e, nil
}

// fakePicker records the offered choices and returns the one labelled
// choice, or nil.
type fakePicker struct {
	choice  string
	offered []string
}

func (p *fakePicker) Pick(_ context.Context, _ string, choices []task.Info) (*task.Info, error) {
	for _, c := range choices {
		p.offered = append(p.offered, task.Label(c))
	}
	for _, c := range choices {
		if task.Label(c) == p.choice {
			return &c, nil
		}
	}
	return nil, nil
}

type fakeOpener struct{ opened []Location }

func (o *fakeOpener) Open(_ context.Context, loc Location) error {
	o.opened = append(o.opened, loc)
	return nil
}

type locator []workspace.Folder

func (l locator) FolderFor(path string) (workspace.Folder, bool) {
	for _, f := range l {
		if strings.HasPrefix(path, f.Path+"/") {
			return f, true
		}
	}
	return workspace.Folder{}, false
}

type fixture struct {
	cmds     *Commands
	resolver *fakeResolver
	launcher *fakeLauncher
	picker   *fakePicker
	opener   *fakeOpener
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		resolver: &fakeResolver{
			docs: map[string]string{
				rootDoc: "tasks:\n  build:\n  test:\n",
				apiDoc:  "tasks:\n  serve:\n",
			},
			order: []string{rootDoc, apiDoc},
		},
		launcher: &fakeLauncher{},
		picker:   &fakePicker{},
		opener:   &fakeOpener{},
	}
	f.cmds = New(&Context{
		Resolver: f.resolver,
		Launcher: f.launcher,
		Locator:  locator{{Name: "ws", Path: "/ws"}},
		Picker:   f.picker,
		Opener:   f.opener,
	})
	t.Cleanup(f.cmds.Close)
	return f
}

func (f *fixture) find(t *testing.T, query string) task.Info {
	t.Helper()
	info, err := f.cmds.Find(context.Background(), query)
	require.NoError(t, err)
	return info
}

func TestRunAndStop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	var changes atomic.Int32
	f.cmds.OnChange(func() { changes.Add(1) })

	build := f.find(t, "build")
	_, err := f.cmds.Run(ctx, &build, true)
	require.NoError(t, err)
	assert.True(t, f.cmds.IsRunning(build))
	assert.Equal(t, []string{"build --watch"}, f.launcher.launched)

	require.NoError(t, f.cmds.Stop(ctx, &build))
	assert.False(t, f.cmds.IsRunning(build))
	assert.Equal(t, int32(1), f.launcher.execs[0].terminated.Load())
	assert.Equal(t, int32(2), changes.Load())
}

func TestRunRejectsRunningTask(t *testing.T) {
	f := setup(t)
	build := f.find(t, "build")

	_, err := f.cmds.Run(context.Background(), &build, false)
	require.NoError(t, err)
	_, err = f.cmds.Run(context.Background(), &build, false)

	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.AlreadyRunning, cliErr.Code)
	assert.Len(t, f.launcher.launched, 1)
}

func TestRunNotInstalled(t *testing.T) {
	f := setup(t)
	f.launcher.err = clierr.New(clierr.NotInstalled, "Task is not installed")
	build := f.find(t, "build")

	_, err := f.cmds.Run(context.Background(), &build, false)
	require.Error(t, err)
	assert.False(t, f.cmds.IsRunning(build))
}

func TestRunPicksWhenNoTarget(t *testing.T) {
	f := setup(t)
	f.picker.choice = "api: serve"

	_, err := f.cmds.Run(context.Background(), nil, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"ws: build", "ws: test", "api: serve"}, f.picker.offered)
	assert.Equal(t, []string{"serve"}, f.launcher.launched)
}

func TestCancelledPickIsNoop(t *testing.T) {
	f := setup(t)

	exec, err := f.cmds.Run(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Nil(t, exec)
	assert.Empty(t, f.launcher.launched)

	loc, err := f.cmds.Open(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, loc)
	assert.Empty(t, f.opener.opened)
}

func TestRunWithoutPickerRequiresTarget(t *testing.T) {
	f := setup(t)
	f.cmds.Context().Picker = nil

	exec, err := f.cmds.Run(context.Background(), nil, false)
	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.InvalidInput, cliErr.Code)
	assert.Nil(t, exec)
	assert.Empty(t, f.launcher.launched)

	_, err = f.cmds.Open(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, f.opener.opened)
}

func TestStopPicksAmongRunning(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	build, serve := f.find(t, "build"), f.find(t, "serve")
	_, err := f.cmds.Run(ctx, &build, false)
	require.NoError(t, err)
	_, err = f.cmds.Run(ctx, &serve, false)
	require.NoError(t, err)

	f.picker.choice = "api: serve"
	require.NoError(t, f.cmds.Stop(ctx, nil))

	assert.Equal(t, []string{"ws: build", "api: serve"}, f.picker.offered)
	assert.True(t, f.cmds.IsRunning(build))
	assert.False(t, f.cmds.IsRunning(serve))
}

func TestStopWithNothingRunningDoesNotPick(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.cmds.Stop(context.Background(), nil))
	assert.Empty(t, f.picker.offered)
}

func TestCompletionReturnsToIdle(t *testing.T) {
	f := setup(t)
	changed := make(chan struct{}, 4)
	f.cmds.OnChange(func() { changed <- struct{}{} })

	build := f.find(t, "build")
	_, err := f.cmds.Run(context.Background(), &build, false)
	require.NoError(t, err)
	<-changed

	close(f.launcher.execs[0].done)
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("no change after completion")
	}
	assert.False(t, f.cmds.IsRunning(build))
}

func TestOpen(t *testing.T) {
	f := setup(t)
	test := f.find(t, "test")

	loc, err := f.cmds.Open(context.Background(), &test)
	require.NoError(t, err)
	want := Location{Path: rootDoc, Line: 2, Col: 2, EndLine: 2, EndCol: 6}
	assert.Equal(t, &want, loc)
	assert.Equal(t, []Location{want}, f.opener.opened)
}

func TestActivate(t *testing.T) {
	f := setup(t)
	build := f.find(t, "build")

	require.NoError(t, f.cmds.Activate(context.Background(), build))
	assert.Len(t, f.opener.opened, 1)

	f.cmds.Context().Action = tree.ActionRun
	require.NoError(t, f.cmds.Activate(context.Background(), build))
	assert.True(t, f.cmds.IsRunning(build))

	f.cmds.Context().Action = tree.ActionNone
	require.NoError(t, f.cmds.Activate(context.Background(), build))
	assert.Len(t, f.opener.opened, 1)
}

func TestRefresh(t *testing.T) {
	f := setup(t)
	var changes atomic.Int32
	unsubscribe := f.cmds.OnChange(func() { changes.Add(1) })

	f.cmds.Refresh(false)
	assert.Zero(t, f.resolver.invalidated.Load())
	f.cmds.Refresh(true)
	assert.Equal(t, int32(1), f.resolver.invalidated.Load())
	assert.Equal(t, int32(2), changes.Load())

	unsubscribe()
	f.cmds.Refresh(false)
	assert.Equal(t, int32(2), changes.Load())
}

func TestTreeReflectsRunState(t *testing.T) {
	f := setup(t)
	build := f.find(t, "build")
	_, err := f.cmds.Run(context.Background(), &build, false)
	require.NoError(t, err)

	nodes, err := f.cmds.Tree(context.Background())
	require.NoError(t, err)

	require.Len(t, nodes, 2)
	assert.Equal(t, "Taskfile.yml", nodes[0].Label)
	assert.Equal(t, "api/Taskfile.yml", nodes[1].Label)
	assert.True(t, nodes[0].Children[0].Running)
	assert.False(t, nodes[0].Children[1].Running)
}

func TestTreeEmptyWorkspace(t *testing.T) {
	f := setup(t)
	f.resolver.order = nil

	nodes, err := f.cmds.Tree(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, tree.KindPlaceholder, nodes[0].Kind)
}

func TestTreePropagatesEnumerationFailure(t *testing.T) {
	f := setup(t)
	f.resolver.err = clierr.New(clierr.EnumerationFailed, "boom")

	_, err := f.cmds.Tree(context.Background())
	assert.Error(t, err)
}

func TestHover(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	h, err := f.cmds.Hover(ctx, rootDoc, 1, 3)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "build", h.Info.Name())
	assert.Equal(t, "Run task | Watch task", h.Text())

	_, err = f.cmds.Run(ctx, &h.Info, false)
	require.NoError(t, err)
	h, err = f.cmds.Hover(ctx, rootDoc, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "Task running | Stop task", h.Text())
	assert.Equal(t, HoverStop, h.Actions[1].Command)

	h, err = f.cmds.Hover(ctx, rootDoc, 1, 7)
	require.NoError(t, err)
	assert.Nil(t, h)

	_, err = f.cmds.Hover(ctx, rootDoc, -1, 0)
	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.InvalidPosition, cliErr.Code)
}

func TestHistoryRecordsRuns(t *testing.T) {
	f := setup(t)
	log := history.Open(filepath.Join(t.TempDir(), "history.jsonl"))
	f.cmds.Context().History = log
	ctx := context.Background()

	build := f.find(t, "build")
	_, err := f.cmds.Run(ctx, &build, false)
	require.NoError(t, err)
	require.NoError(t, f.cmds.Stop(ctx, &build))
	close(f.launcher.execs[0].done)

	require.Eventually(t, func() bool {
		entries, err := log.Read(0)
		return err == nil && len(entries) == 3
	}, time.Second, 10*time.Millisecond)

	entries, err := log.Read(0)
	require.NoError(t, err)
	assert.Equal(t, history.ActionRun, entries[0].Action)
	assert.Equal(t, "build", entries[0].Execution)
	assert.Equal(t, history.ActionStop, entries[1].Action)
	assert.Equal(t, history.ActionEnd, entries[2].Action)
}
