package resolver

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/taskwatch/internal/analysis"
	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

var (
	_ Resolver = (*Local)(nil)
	_ Resolver = (*Remote)(nil)
)

// fakeHost serves documents from memory. paths maps a folder path to the
// documents it returns, in order.
type fakeHost struct {
	folders []workspace.Folder
	paths   map[string][]string
	files   map[string]string
	findErr error
	finds   atomic.Int32

	// gate, if set, blocks FindFiles until it is closed.
	gate chan struct{}
}

func (h *fakeHost) Folders() []workspace.Folder { return h.folders }

func (h *fakeHost) FindFiles(ctx context.Context, f workspace.Folder, _ string) ([]string, error) {
	h.finds.Add(1)
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.findErr != nil {
		return nil, h.findErr
	}
	return h.paths[f.Path], nil
}

func (h *fakeHost) ReadFile(path string) (string, bool, error) {
	content, ok := h.files[path]
	return content, ok, nil
}

func newHost() *fakeHost {
	return &fakeHost{
		folders: []workspace.Folder{{Name: "a", Path: "/a"}, {Name: "b", Path: "/b"}},
		paths: map[string][]string{
			"/a": {"/a/Taskfile.yml", "/shared/Taskfile.yml"},
			"/b": {"/shared/Taskfile.yml", "/b/Taskfile.yml", "/b/gone/Taskfile.yml"},
		},
		files: map[string]string{
			"/a/Taskfile.yml":      "tasks:\n  build:\n  test:\n",
			"/shared/Taskfile.yml": "tasks:\n  lint:\n",
			"/b/Taskfile.yml":      "version: '3'\n",
		},
	}
}

func keys(infos []task.Info) []string {
	out := make([]string, 0, len(infos))
	for _, i := range infos {
		out = append(out, string(task.KeyOf(i)))
	}
	return out
}

func TestLocalProvideTasks(t *testing.T) {
	l := NewLocal(newHost(), "")

	tasks, err := l.ProvideTasks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/a/Taskfile.yml:build",
		"/a/Taskfile.yml:test",
		"/shared/Taskfile.yml:lint",
	}, keys(tasks))
}

func TestLocalMemoizesUntilInvalidated(t *testing.T) {
	h := newHost()
	l := NewLocal(h, "")
	ctx := context.Background()

	_, err := l.ProvideTasks(ctx)
	require.NoError(t, err)
	h.files["/b/Taskfile.yml"] = "tasks:\n  deploy:\n"

	tasks, err := l.ProvideTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
	assert.Equal(t, int32(2), h.finds.Load())

	l.Invalidate()
	tasks, err = l.ProvideTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 4)
}

func TestLocalEmptyWorkspace(t *testing.T) {
	l := NewLocal(&fakeHost{}, "")

	tasks, err := l.ProvideTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLocalEnumerationFailure(t *testing.T) {
	cause := errors.New("permission denied")
	h := newHost()
	h.findErr = cause
	l := NewLocal(h, "")

	_, err := l.ProvideTasks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var cliErr *clierr.Error
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, clierr.EnumerationFailed, cliErr.Code)

	_, ok := l.cachedTasks()
	assert.False(t, ok)
}

func TestLocalCanceledCommitsNothing(t *testing.T) {
	h := newHost()
	h.gate = make(chan struct{})
	l := NewLocal(h, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.ProvideTasks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := l.cachedTasks()
	assert.False(t, ok)
}

func TestLocalConcurrentCallersSharePopulation(t *testing.T) {
	h := newHost()
	h.gate = make(chan struct{})
	l := NewLocal(h, "")

	var wg sync.WaitGroup
	results := make([][]task.Info, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tasks, err := l.ProvideTasks(context.Background())
			assert.NoError(t, err)
			results[i] = tasks
		}()
	}
	close(h.gate)
	wg.Wait()

	for _, r := range results {
		assert.Len(t, r, 3)
	}
	assert.LessOrEqual(t, h.finds.Load(), int32(2*len(results)))
}

func TestLocalTasksForDocument(t *testing.T) {
	l := NewLocal(newHost(), "")

	tasks, err := l.TasksForDocument(context.Background(), "/a/Taskfile.yml")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = l.TasksForDocument(context.Background(), "/nowhere/Taskfile.yml")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestInvalidateDuringPopulationDiscardsResult(t *testing.T) {
	h := newHost()
	h.gate = make(chan struct{})
	l := NewLocal(h, "")

	done := make(chan []task.Info)
	go func() {
		tasks, err := l.ProvideTasks(context.Background())
		assert.NoError(t, err)
		done <- tasks
	}()

	for h.finds.Load() == 0 {
		runtime.Gosched()
	}
	l.Invalidate()
	close(h.gate)

	tasks := <-done
	assert.Len(t, tasks, 3)
	_, ok := l.cachedTasks()
	assert.False(t, ok)
}

// fakeService answers from memory and lets tests push updates.
type fakeService struct {
	mu    sync.Mutex
	docs  map[string][]task.Info
	err   error
	fail  map[string]error
	calls atomic.Int32
	subs  []func(analysis.Update)
	unsub atomic.Int32
}

func (s *fakeService) TasksForDocument(ctx context.Context, path string) ([]task.Info, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if err := s.fail[path]; err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[path], nil
}

func (s *fakeService) OnTaskfileUpdate(fn func(analysis.Update)) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
	return func() { s.unsub.Add(1) }
}

func (s *fakeService) push(u analysis.Update) {
	s.mu.Lock()
	subs := append([]func(analysis.Update){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}

func ref(name string) task.Info {
	return task.Info{Task: task.Ref{Value: name}}
}

func newService() *fakeService {
	return &fakeService{docs: map[string][]task.Info{
		"/a/Taskfile.yml":      {ref("build"), ref("test")},
		"/shared/Taskfile.yml": {ref("lint")},
		"/b/Taskfile.yml":      nil,
	}}
}

func TestRemoteProvideTasksKeepsEnumerationOrder(t *testing.T) {
	r := NewRemote(newHost(), "", newService(), nil)
	defer r.Close()

	tasks, err := r.ProvideTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/a/Taskfile.yml:build",
		"/a/Taskfile.yml:test",
		"/shared/Taskfile.yml:lint",
	}, keys(tasks))
}

func TestRemoteScopedUpdate(t *testing.T) {
	svc := newService()
	var notified atomic.Int32
	r := NewRemote(newHost(), "", svc, func(analysis.Update) { notified.Add(1) })
	defer r.Close()
	ctx := context.Background()

	_, err := r.ProvideTasks(ctx)
	require.NoError(t, err)

	u := analysis.Update{Scope: "/a/Taskfile.yml", Tasks: []task.Info{ref("release")}}
	svc.push(u)
	svc.push(u)

	tasks, err := r.ProvideTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/shared/Taskfile.yml:lint",
		"/a/Taskfile.yml:release",
	}, keys(tasks))
	assert.Equal(t, int32(2), notified.Load())
	assert.Equal(t, int32(4), svc.calls.Load())
}

func TestRemoteUpdateDuringPopulationIsKept(t *testing.T) {
	h := newHost()
	h.gate = make(chan struct{})
	svc := newService()
	r := NewRemote(h, "", svc, nil)
	defer r.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.ProvideTasks(context.Background())
		assert.NoError(t, err)
	}()

	for h.finds.Load() == 0 {
		runtime.Gosched()
	}
	svc.push(analysis.Update{Scope: "/shared/Taskfile.yml", Tasks: []task.Info{ref("fmt")}})
	close(h.gate)
	<-done

	tasks, ok := r.cachedTasks()
	require.True(t, ok)
	assert.Equal(t, []string{
		"/a/Taskfile.yml:build",
		"/a/Taskfile.yml:test",
		"/shared/Taskfile.yml:fmt",
	}, keys(tasks))
}

func TestRemoteDocumentFailureKeepsOtherDocuments(t *testing.T) {
	svc := newService()
	svc.docs["/b/Taskfile.yml"] = []task.Info{ref("deploy")}
	svc.fail = map[string]error{"/b/Taskfile.yml": errors.New("round trip failed")}
	r := NewRemote(newHost(), "", svc, nil)
	defer r.Close()

	tasks, err := r.ProvideTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/a/Taskfile.yml:build",
		"/a/Taskfile.yml:test",
		"/shared/Taskfile.yml:lint",
	}, keys(tasks))

	cached, ok := r.cachedTasks()
	require.True(t, ok)
	assert.Len(t, cached, 3)

	delete(svc.fail, "/b/Taskfile.yml")
	r.Invalidate()
	tasks, err = r.ProvideTasks(context.Background())
	require.NoError(t, err)
	assert.Contains(t, keys(tasks), "/b/Taskfile.yml:deploy")
}

func TestRemoteCanceledCommitsNothing(t *testing.T) {
	svc := newService()
	r := NewRemote(newHost(), "", svc, nil)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ProvideTasks(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, ok := r.cachedTasks()
	assert.False(t, ok)
}

func TestRemoteClose(t *testing.T) {
	svc := newService()
	r := NewRemote(newHost(), "", svc, nil)

	r.Close()
	r.Close()
	assert.Equal(t, int32(1), svc.unsub.Load())
}
