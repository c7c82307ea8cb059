package commands

import (
	"context"
	"strings"

	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// Hover commands. An empty command marks a plain status label.
const (
	HoverRun   = "run"
	HoverWatch = "watch"
	HoverStop  = "stop"
)

// HoverAction is one entry of a hover.
type HoverAction struct {
	Label   string `json:"label"`
	Command string `json:"command,omitempty"`
}

// Hover describes what can be done with the task under a position.
type Hover struct {
	Info    task.Info     `json:"info"`
	Range   task.Ref      `json:"range"`
	Running bool          `json:"running"`
	Actions []HoverAction `json:"actions"`
}

// Text renders the hover as a single line, e.g. "Run task | Watch task".
func (h *Hover) Text() string {
	labels := make([]string, len(h.Actions))
	for i, a := range h.Actions {
		labels[i] = a.Label
	}
	return strings.Join(labels, " | ")
}

// Hover returns the actions for the task whose name spans the zero-based
// position in the document at path, or nil when no task is there.
func (c *Commands) Hover(ctx context.Context, path string, line, col int) (*Hover, error) {
	if err := task.ValidatePosition(line, col); err != nil {
		return nil, err
	}

	infos, err := c.ctx.Resolver.TasksForDocument(ctx, path)
	if err != nil {
		return nil, err
	}

	info, ok := task.FindAt(infos, path, line, col)
	if !ok {
		return nil, nil
	}

	return c.HoverFor(info), nil
}

// HoverFor returns the actions available for info in its current run state.
func (c *Commands) HoverFor(info task.Info) *Hover {
	h := &Hover{Info: info, Range: info.Task, Running: c.IsRunning(info)}
	if h.Running {
		h.Actions = []HoverAction{
			{Label: "Task running"},
			{Label: "Stop task", Command: HoverStop},
		}
	} else {
		h.Actions = []HoverAction{
			{Label: "Run task", Command: HoverRun},
			{Label: "Watch task", Command: HoverWatch},
		}
	}
	return h
}
