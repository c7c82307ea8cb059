// Package tree builds the explorer hierarchy of a workspace: folders,
// Taskfiles and tasks.
package tree

import (
	"fmt"
	"path/filepath"

	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

// NoTasksLabel is the label of the placeholder shown for an empty workspace.
const NoTasksLabel = "No tasks found"

// Kind discriminates tree nodes.
type Kind int

const (
	KindFolder Kind = iota
	KindTaskfile
	KindTask
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindTaskfile:
		return "taskfile"
	case KindTask:
		return "task"
	case KindPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Node is one entry of the tree. Which fields are set depends on Kind:
// folders and Taskfiles carry Path and Children, tasks carry Info, Running
// and Group.
type Node struct {
	Kind     Kind       `json:"kind"`
	Label    string     `json:"label"`
	Path     string     `json:"path,omitempty"`
	Info     *task.Info `json:"info,omitempty"`
	Running  bool       `json:"running,omitempty"`
	Group    task.Group `json:"group,omitempty"`
	Children []*Node    `json:"children,omitempty"`
}

// Action is what activating a task node does.
type Action string

const (
	ActionOpen Action = "open"
	ActionRun  Action = "run"
	ActionNone Action = "none"
)

// ParseAction validates an explorer action setting. Empty selects open.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "":
		return ActionOpen, nil
	case ActionOpen, ActionRun, ActionNone:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown explorer action %q (want open, run or none)", s)
	}
}

// Command returns the action bound to n under the given setting. Only task
// nodes have one.
func (n *Node) Command(setting Action) Action {
	if n.Kind != KindTask {
		return ActionNone
	}
	return setting
}

// FolderLocator maps a document to its workspace folder.
type FolderLocator interface {
	FolderFor(path string) (workspace.Folder, bool)
}

// Build assembles the tree for tasks, in input order. running reports the
// run state of each task and may be nil. When every task belongs to a single
// workspace folder, the folder level is omitted. A workspace without tasks
// yields a lone placeholder node.
func Build(tasks []task.Info, running func(task.Info) bool, locator FolderLocator) []*Node {
	var (
		folders   []*Node
		byFolder  = make(map[string]*Node)
		byScope   = make(map[string]*Node)
		taskfiles []*Node
	)

	for _, info := range tasks {
		folder, ok := locator.FolderFor(info.Scope)
		if !ok {
			continue
		}

		fn, ok := byFolder[folder.Path]
		if !ok {
			fn = &Node{Kind: KindFolder, Label: folder.Name, Path: folder.Path}
			byFolder[folder.Path] = fn
			folders = append(folders, fn)
		}

		tf, ok := byScope[info.Scope]
		if !ok {
			tf = &Node{Kind: KindTaskfile, Label: taskfileLabel(folder, info.Scope), Path: info.Scope}
			byScope[info.Scope] = tf
			fn.Children = append(fn.Children, tf)
			taskfiles = append(taskfiles, tf)
		}

		addTask(tf, info, running)
	}

	switch len(folders) {
	case 0:
		return []*Node{{Kind: KindPlaceholder, Label: NoTasksLabel}}
	case 1:
		return taskfiles
	default:
		return folders
	}
}

// addTask appends a task node to tf. A redeclared name replaces the earlier
// node's declaration in place.
func addTask(tf *Node, info task.Info, running func(task.Info) bool) {
	isRunning := running != nil && running(info)
	for _, existing := range tf.Children {
		if existing.Info.Name() == info.Name() {
			existing.Info = &info
			existing.Running = isRunning
			return
		}
	}
	tf.Children = append(tf.Children, &Node{
		Kind:    KindTask,
		Label:   info.Name(),
		Info:    &info,
		Running: isRunning,
		Group:   task.InferGroup(info.Name()),
	})
}

func taskfileLabel(folder workspace.Folder, scope string) string {
	rel, err := filepath.Rel(folder.Path, scope)
	if err != nil {
		return scope
	}
	return rel
}

// Row is a node positioned for display.
type Row struct {
	Node  *Node
	Depth int
}

// Flatten lists nodes depth first, children after their parent.
func Flatten(nodes []*Node) []Row {
	var rows []Row
	var walk func(ns []*Node, depth int)
	walk = func(ns []*Node, depth int) {
		for _, n := range ns {
			rows = append(rows, Row{Node: n, Depth: depth})
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return rows
}

// Tasks returns the task nodes of the tree in display order.
func Tasks(nodes []*Node) []*Node {
	var out []*Node
	for _, r := range Flatten(nodes) {
		if r.Node.Kind == KindTask {
			out = append(out, r.Node)
		}
	}
	return out
}
