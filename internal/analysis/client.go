// Package analysis talks to an out-of-process Taskfile language server that
// parses documents on behalf of taskwatch and pushes task-set changes.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// Methods understood by the language server.
const (
	MethodTasks          = "taskfile/tasks"
	MethodDidUpdateTasks = "taskfile/didUpdateTasks"
)

// Update announces the new authoritative task list of one document.
type Update struct {
	Scope string      `json:"scope"`
	Tasks []task.Info `json:"tasks"`
}

// Service is an analysis provider: tasks per document on request, and
// pushed updates when a document's task set changes.
type Service interface {
	TasksForDocument(ctx context.Context, path string) ([]task.Info, error)
	OnTaskfileUpdate(fn func(Update)) (unsubscribe func())
}

type tasksParams struct {
	Path string `json:"path"`
}

// Client is a Service backed by a JSON-RPC connection.
type Client struct {
	t *transport

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Update)

	cmd *exec.Cmd
}

// NewClient creates a client over an established connection. The closer, if
// any, is closed with the client.
func NewClient(r io.Reader, w io.Writer, c io.Closer) *Client {
	cl := &Client{
		t:    newTransport(r, w, c),
		subs: make(map[int]func(Update)),
	}
	cl.t.onNotification(MethodDidUpdateTasks, cl.handleUpdate)
	cl.t.start()
	return cl
}

// Spawn starts the language server command and connects to its stdio.
func Spawn(ctx context.Context, command string, args ...string) (*Client, error) {
	if command == "" {
		return nil, clierr.New(clierr.InvalidInput, "language server command is not configured")
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, clierr.Wrap(clierr.NotInstalled, err, "language server %s is not installed", command).
			WithDetails(map[string]any{"command": command})
	}

	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec // command comes from the user's config
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("language server stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("language server stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, clierr.Wrap(clierr.ServiceFailed, err, "starting language server")
	}
	slog.Debug("analysis: language server started", "command", path, "pid", cmd.Process.Pid)

	cl := NewClient(stdout, stdin, stdin)
	cl.cmd = cmd
	return cl, nil
}

// TasksForDocument asks the service for the tasks declared in path.
func (c *Client) TasksForDocument(ctx context.Context, path string) ([]task.Info, error) {
	var infos []task.Info
	if err := c.t.call(ctx, MethodTasks, tasksParams{Path: path}, &infos); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, clierr.Wrap(clierr.ServiceFailed, err, "requesting tasks for %s", path).
			WithDetails(map[string]any{"path": path})
	}
	for i := range infos {
		if infos[i].Scope == "" {
			infos[i].Scope = path
		}
	}
	return infos, nil
}

// OnTaskfileUpdate registers fn for pushed updates. Handlers run on the
// connection's read loop and must not block.
func (c *Client) OnTaskfileUpdate(fn func(Update)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) handleUpdate(params json.RawMessage) {
	var u Update
	if err := json.Unmarshal(params, &u); err != nil {
		slog.Debug("analysis: bad update notification", "error", err)
		return
	}
	for i := range u.Tasks {
		u.Tasks[i].Scope = u.Scope
	}

	c.mu.Lock()
	fns := make([]func(Update), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Close shuts the connection down and stops the server process, if any.
func (c *Client) Close() error {
	err := c.t.close()
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	}
	return err
}
