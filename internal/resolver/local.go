package resolver

import (
	"context"
	"log/slog"

	"github.com/twiced-technology-gmbh/taskwatch/internal/scan"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// Local resolves tasks by scanning Taskfiles read from the host.
type Local struct {
	base
}

// NewLocal creates a resolver scanning documents that match pattern. An
// empty pattern selects DefaultPattern.
func NewLocal(host Host, pattern string) *Local {
	return &Local{base: newBase(host, pattern)}
}

// ProvideTasks returns every task of the workspace.
func (l *Local) ProvideTasks(ctx context.Context) ([]task.Info, error) {
	return l.provide(ctx, l.populate)
}

// TasksForDocument scans one document. A missing document has no tasks.
func (l *Local) TasksForDocument(ctx context.Context, path string) ([]task.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, found, err := l.host.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Debug("resolver: document vanished", "path", path)
		return nil, nil
	}
	return scan.Tasks(path, content), nil
}

func (l *Local) populate(ctx context.Context) ([]task.Info, error) {
	paths, err := l.Documents(ctx)
	if err != nil {
		return nil, err
	}

	var all []task.Info
	for _, p := range paths {
		infos, err := l.TasksForDocument(ctx, p)
		if err != nil {
			return nil, err
		}
		all = append(all, infos...)
	}
	return all, nil
}
