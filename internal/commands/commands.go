// Package commands implements the user-facing task operations shared by the
// CLI and the explorer: open, run, stop, refresh, tree and hover.
package commands

import (
	"context"
	"log/slog"
	"sync"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/history"
	"github.com/twiced-technology-gmbh/taskwatch/internal/resolver"
	"github.com/twiced-technology-gmbh/taskwatch/internal/runstate"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/tree"
)

// Launcher starts task executions.
type Launcher interface {
	Launch(ctx context.Context, info task.Info, watch bool) (runstate.Execution, error)
}

// Picker asks the user to choose one task. A nil result means the user
// cancelled.
type Picker interface {
	Pick(ctx context.Context, title string, choices []task.Info) (*task.Info, error)
}

// Opener reveals a location in an editor.
type Opener interface {
	Open(ctx context.Context, loc Location) error
}

// Location is the span of a task name within its Taskfile.
type Location struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	EndLine int    `json:"end_line"`
	EndCol  int    `json:"end_col"`
}

// LocationOf returns where info is declared.
func LocationOf(info task.Info) Location {
	return Location{
		Path:    info.Scope,
		Line:    info.Task.StartLine,
		Col:     info.Task.StartCol,
		EndLine: info.Task.EndLine,
		EndCol:  info.Task.EndCol,
	}
}

// Context holds the state shared by every command. It is created once by
// the host and passed by reference.
type Context struct {
	Resolver resolver.Resolver
	Tracker  *runstate.Tracker
	Launcher Launcher
	Locator  tree.FolderLocator

	// Optional collaborators.
	Picker  Picker
	Opener  Opener
	History *history.Log

	// Action is what activating a task in the explorer does.
	Action tree.Action
}

// execution optionally exposes details of a launched run for the history.
type execution interface {
	ExecutionID() string
	ExitCode() int
}

// Commands executes task operations against a Context.
type Commands struct {
	ctx *Context
	sub runstate.Subscription

	mu      sync.Mutex
	nextID  int
	changed map[int]func()
}

// New creates the command set for c. Run-state transitions and refreshes
// are announced through OnChange.
func New(c *Context) *Commands {
	if c.Tracker == nil {
		c.Tracker = runstate.New()
	}
	if c.Action == "" {
		c.Action = tree.ActionOpen
	}
	cmds := &Commands{ctx: c, changed: make(map[int]func())}
	cmds.sub = c.Tracker.Subscribe(func(runstate.Event) { cmds.notify() })
	return cmds
}

// Context returns the shared state.
func (c *Commands) Context() *Context { return c.ctx }

// OnChange registers fn to be called whenever the tree should be rebuilt.
// The returned function unregisters it.
func (c *Commands) OnChange(fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.changed[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.changed, id)
		c.mu.Unlock()
	}
}

func (c *Commands) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.changed))
	for _, fn := range c.changed {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close stops every running task and releases subscriptions.
func (c *Commands) Close() {
	c.ctx.Tracker.StopAll()
	c.sub.Unsubscribe()
}

// Tasks returns every task of the workspace.
func (c *Commands) Tasks(ctx context.Context) ([]task.Info, error) {
	return c.ctx.Resolver.ProvideTasks(ctx)
}

// Find looks a task up by name or pick label.
func (c *Commands) Find(ctx context.Context, query string) (task.Info, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return task.Info{}, err
	}
	return task.FindByName(tasks, query)
}

// IsRunning reports whether info is executing.
func (c *Commands) IsRunning(info task.Info) bool {
	return c.ctx.Tracker.IsRunning(info)
}

// Running returns the executing tasks in start order.
func (c *Commands) Running() []task.Info {
	return c.ctx.Tracker.Running()
}

// pick resolves a nil target through the picker. It returns nil when
// there is nothing to choose from or the user cancels. Without a picker a
// target is required.
func (c *Commands) pick(ctx context.Context, title string, info *task.Info, choices func() ([]task.Info, error)) (*task.Info, error) {
	if info != nil {
		return info, nil
	}
	list, err := choices()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	if c.ctx.Picker == nil {
		return nil, clierr.New(clierr.InvalidInput, "task name is required")
	}
	return c.ctx.Picker.Pick(ctx, title, list)
}

// Open reveals info in the editor. With a nil info the user picks a task;
// a cancelled pick returns nil and does nothing.
func (c *Commands) Open(ctx context.Context, info *task.Info) (*Location, error) {
	info, err := c.pick(ctx, "Open task", info, func() ([]task.Info, error) { return c.Tasks(ctx) })
	if err != nil || info == nil {
		return nil, err
	}

	loc := LocationOf(*info)
	if c.ctx.Opener != nil {
		if err := c.ctx.Opener.Open(ctx, loc); err != nil {
			return nil, err
		}
	}
	return &loc, nil
}

// Run launches info, with the runner's watch mode when watch is set. With a
// nil info the user picks a task. Running a task that is already running
// fails with ALREADY_RUNNING.
func (c *Commands) Run(ctx context.Context, info *task.Info, watch bool) (runstate.Execution, error) {
	info, err := c.pick(ctx, "Run task", info, func() ([]task.Info, error) { return c.Tasks(ctx) })
	if err != nil || info == nil {
		return nil, err
	}
	target := *info

	if c.ctx.Tracker.IsRunning(target) {
		return nil, alreadyRunning(target)
	}

	exec, err := c.ctx.Launcher.Launch(ctx, target, watch)
	if err != nil {
		return nil, err
	}
	if err := c.ctx.Tracker.Start(target, exec); err != nil {
		_ = exec.Terminate()
		return nil, err
	}

	action := history.ActionRun
	if watch {
		action = history.ActionWatch
	}
	c.record(action, target, exec)
	if c.ctx.History != nil {
		go func() {
			<-exec.Done()
			c.record(history.ActionEnd, target, exec)
		}()
	}
	slog.Debug("commands: run", "task", task.KeyOf(target), "watch", watch)
	return exec, nil
}

// Stop terminates info. With a nil info the user picks among the running
// tasks. Stopping an idle task does nothing.
func (c *Commands) Stop(ctx context.Context, info *task.Info) error {
	info, err := c.pick(ctx, "Stop task", info, func() ([]task.Info, error) { return c.Running(), nil })
	if err != nil || info == nil {
		return err
	}
	if !c.ctx.Tracker.IsRunning(*info) {
		return nil
	}

	err = c.ctx.Tracker.Stop(*info)
	c.record(history.ActionStop, *info, nil)
	return err
}

// Activate performs the configured explorer action on info.
func (c *Commands) Activate(ctx context.Context, info task.Info) error {
	switch c.ctx.Action {
	case tree.ActionRun:
		_, err := c.Run(ctx, &info, false)
		return err
	case tree.ActionOpen:
		_, err := c.Open(ctx, &info)
		return err
	default:
		return nil
	}
}

// Refresh asks listeners to rebuild. With force the task cache is dropped
// first so the next read rediscovers everything.
func (c *Commands) Refresh(force bool) {
	if force {
		c.ctx.Resolver.Invalidate()
	}
	c.notify()
}

// Tree builds the explorer hierarchy from the current tasks and run state.
func (c *Commands) Tree(ctx context.Context) ([]*tree.Node, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Build(tasks, c.ctx.Tracker.IsRunning, c.ctx.Locator), nil
}

func alreadyRunning(info task.Info) error {
	return clierr.Newf(clierr.AlreadyRunning, "task %s is already running", task.Label(info)).
		WithDetails(map[string]any{"task": info.Name(), "taskfile": info.Scope})
}

func (c *Commands) record(action string, info task.Info, exec runstate.Execution) {
	if c.ctx.History == nil {
		return
	}
	var (
		id   string
		code *int
	)
	if e, ok := exec.(execution); ok {
		id = e.ExecutionID()
		if action == history.ActionEnd {
			v := e.ExitCode()
			code = &v
		}
	}
	c.ctx.History.Record(action, info, id, code)
}
