package output

import (
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// TaskView is the printable form of a discovered task. Line and Col are
// one-based, as editors display them.
type TaskView struct {
	Name     string     `json:"name"`
	Label    string     `json:"label"`
	Taskfile string     `json:"taskfile"`
	Line     int        `json:"line"`
	Col      int        `json:"col"`
	Group    task.Group `json:"group,omitempty"`
	Running  bool       `json:"running"`
	Desc     string     `json:"desc,omitempty"`
}

// NewTaskView converts info. desc may be empty.
func NewTaskView(info task.Info, running bool, desc string) TaskView {
	return TaskView{
		Name:     info.Name(),
		Label:    task.Label(info),
		Taskfile: info.Scope,
		Line:     info.Task.StartLine + 1,
		Col:      info.Task.StartCol + 1,
		Group:    task.InferGroup(info.Name()),
		Running:  running,
		Desc:     desc,
	}
}

// VarView is the printable form of a top-level variable declaration.
type VarView struct {
	Name     string `json:"name"`
	Taskfile string `json:"taskfile"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// NewVarView converts a variable declared in the document at scope.
func NewVarView(scope string, ref task.Ref) VarView {
	return VarView{
		Name:     ref.Value,
		Taskfile: scope,
		Line:     ref.StartLine + 1,
		Col:      ref.StartCol + 1,
	}
}
