package runstate

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

type fakeExec struct {
	done       chan struct{}
	mu         sync.Mutex
	terminated int
}

func newExec() *fakeExec { return &fakeExec{done: make(chan struct{})} }

func (f *fakeExec) Done() <-chan struct{} { return f.done }

func (f *fakeExec) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
	return nil
}

func (f *fakeExec) terminations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

func info(scope, name string) task.Info {
	return task.Info{Scope: scope, Task: task.Ref{Value: name}}
}

// recorder collects events delivered to a subscriber.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestStartStop(t *testing.T) {
	tr := New()
	rec := &recorder{}
	tr.Subscribe(rec.record)

	build := info("/ws/Taskfile.yml", "build")
	exec := newExec()

	require.NoError(t, tr.Start(build, exec))
	assert.True(t, tr.IsRunning(build))
	assert.Equal(t, []task.Info{build}, tr.Running())

	require.NoError(t, tr.Stop(build))
	assert.False(t, tr.IsRunning(build))
	assert.Equal(t, 1, exec.terminations())
	assert.Equal(t, []Event{{Info: build, Running: true}, {Info: build, Running: false}}, rec.events)
}

func TestStartRejectsRunningKey(t *testing.T) {
	tr := New()
	build := info("/ws/Taskfile.yml", "build")
	first, second := newExec(), newExec()

	require.NoError(t, tr.Start(build, first))
	err := tr.Start(build, second)

	var cliErr *clierr.Error
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, clierr.AlreadyRunning, cliErr.Code)
	assert.Len(t, tr.Running(), 1)
	assert.Zero(t, second.terminations())
}

func TestSameNameDifferentScopeIsIndependent(t *testing.T) {
	tr := New()
	a := info("/ws/a/Taskfile.yml", "build")
	b := info("/ws/b/Taskfile.yml", "build")

	require.NoError(t, tr.Start(a, newExec()))
	require.NoError(t, tr.Start(b, newExec()))
	assert.Equal(t, []task.Info{a, b}, tr.Running())
}

func TestStopIdleIsNoop(t *testing.T) {
	tr := New()
	rec := &recorder{}
	tr.Subscribe(rec.record)

	require.NoError(t, tr.Stop(info("/ws/Taskfile.yml", "build")))
	assert.Zero(t, rec.len())
}

func TestExecutionEndReturnsToIdle(t *testing.T) {
	tr := New()
	ended := make(chan Event, 1)
	tr.Subscribe(func(ev Event) {
		if !ev.Running {
			ended <- ev
		}
	})

	build := info("/ws/Taskfile.yml", "build")
	exec := newExec()
	require.NoError(t, tr.Start(build, exec))
	close(exec.done)

	select {
	case ev := <-ended:
		assert.Equal(t, build, ev.Info)
	case <-time.After(time.Second):
		t.Fatal("completion not observed")
	}
	assert.False(t, tr.IsRunning(build))
	assert.Zero(t, exec.terminations())

	// The key can be started again once idle.
	require.NoError(t, tr.Start(build, newExec()))
}

func TestStopReleasesCompletionListener(t *testing.T) {
	tr := New()
	rec := &recorder{}
	tr.Subscribe(rec.record)

	build := info("/ws/Taskfile.yml", "build")
	first := newExec()
	require.NoError(t, tr.Start(build, first))
	require.NoError(t, tr.Stop(build))

	second := newExec()
	require.NoError(t, tr.Start(build, second))
	close(first.done)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, tr.IsRunning(build))
	assert.Equal(t, 3, rec.len())
}

func TestUnsubscribe(t *testing.T) {
	tr := New()
	rec := &recorder{}
	sub := tr.Subscribe(rec.record)
	sub.Unsubscribe()
	sub.Unsubscribe()

	require.NoError(t, tr.Start(info("/ws/Taskfile.yml", "build"), newExec()))
	assert.Zero(t, rec.len())
}

func TestStopAll(t *testing.T) {
	tr := New()
	execs := []*fakeExec{newExec(), newExec()}
	require.NoError(t, tr.Start(info("/a", "x"), execs[0]))
	require.NoError(t, tr.Start(info("/b", "y"), execs[1]))

	tr.StopAll()

	assert.Empty(t, tr.Running())
	for _, e := range execs {
		assert.Equal(t, 1, e.terminations())
	}
}
