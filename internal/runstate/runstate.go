// Package runstate tracks which tasks are executing.
//
// Each task key is either idle or running with exactly one execution. A
// running entry returns to idle when it is stopped or when its execution
// ends on its own, and every transition is announced to subscribers.
package runstate

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// Execution is a handle on a launched task.
type Execution interface {
	// Done is closed when the execution ends.
	Done() <-chan struct{}
	// Terminate asks the execution to stop.
	Terminate() error
}

// Event describes a state transition of one task.
type Event struct {
	Info    task.Info
	Running bool
}

// Subscription is a registered state listener.
type Subscription struct {
	t  *Tracker
	id int
}

// Unsubscribe stops delivery to the listener. It is safe to call more than
// once.
func (s Subscription) Unsubscribe() {
	if s.t == nil {
		return
	}
	s.t.mu.Lock()
	delete(s.t.subs, s.id)
	s.t.mu.Unlock()
}

type entry struct {
	info    task.Info
	exec    Execution
	seq     uint64
	release chan struct{}
}

// Tracker records running tasks by key. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[task.Key]*entry
	seq     uint64
	subs    map[int]func(Event)
	nextSub int
}

// New returns a tracker with nothing running.
func New() *Tracker {
	return &Tracker{
		entries: make(map[task.Key]*entry),
		subs:    make(map[int]func(Event)),
	}
}

// Start records exec as the execution of info. Starting a task that is
// already running is rejected with an ALREADY_RUNNING error and exec is left
// untouched. When exec ends on its own the task returns to idle.
func (t *Tracker) Start(info task.Info, exec Execution) error {
	key := task.KeyOf(info)

	t.mu.Lock()
	if _, ok := t.entries[key]; ok {
		t.mu.Unlock()
		return clierr.Newf(clierr.AlreadyRunning, "task %s is already running", task.Label(info)).
			WithDetails(map[string]any{"task": info.Name(), "taskfile": info.Scope})
	}
	t.seq++
	e := &entry{info: info, exec: exec, seq: t.seq, release: make(chan struct{})}
	t.entries[key] = e
	t.mu.Unlock()

	go t.awaitEnd(key, e)

	slog.Debug("runstate: started", "task", key)
	t.fire(Event{Info: info, Running: true})
	return nil
}

// awaitEnd is the one-shot completion listener of an entry.
func (t *Tracker) awaitEnd(key task.Key, e *entry) {
	select {
	case <-e.exec.Done():
	case <-e.release:
		return
	}

	t.mu.Lock()
	current, ok := t.entries[key]
	if !ok || current != e {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	close(e.release)
	t.mu.Unlock()

	slog.Debug("runstate: ended", "task", key)
	t.fire(Event{Info: e.info, Running: false})
}

// Stop terminates the execution of info. Stopping an idle task does nothing.
func (t *Tracker) Stop(info task.Info) error {
	key := task.KeyOf(info)

	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.entries, key)
	close(e.release)
	t.mu.Unlock()

	err := e.exec.Terminate()
	if err != nil {
		slog.Debug("runstate: terminate failed", "task", key, "error", err)
	}
	slog.Debug("runstate: stopped", "task", key)
	t.fire(Event{Info: e.info, Running: false})
	return err
}

// IsRunning reports whether info has a live execution.
func (t *Tracker) IsRunning(info task.Info) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[task.KeyOf(info)]
	return ok
}

// Running returns the running tasks in the order they were started.
func (t *Tracker) Running() []task.Info {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	infos := make([]task.Info, len(entries))
	for i, e := range entries {
		infos[i] = e.info
	}
	return infos
}

// StopAll terminates every running execution.
func (t *Tracker) StopAll() {
	for _, info := range t.Running() {
		_ = t.Stop(info)
	}
}

// Subscribe registers fn for state transitions. fn runs on the goroutine
// that caused the transition and must not call back into Start or Stop
// synchronously.
func (t *Tracker) Subscribe(fn func(Event)) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return Subscription{t: t, id: id}
}

func (t *Tracker) fire(ev Event) {
	t.mu.Lock()
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.subs[id])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
