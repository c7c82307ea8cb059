package resolver

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/twiced-technology-gmbh/taskwatch/internal/analysis"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// fetchLimit bounds the concurrent per-document requests of one population.
const fetchLimit = 8

// Remote resolves tasks through an analysis service and applies the
// service's pushed updates to the cache.
type Remote struct {
	base
	service analysis.Service

	closeOnce   sync.Once
	unsubscribe func()
	onUpdate    func(analysis.Update)
}

// NewRemote creates a resolver backed by service and subscribes to its
// updates. onUpdate, if not nil, is called after each update is applied.
func NewRemote(host Host, pattern string, service analysis.Service, onUpdate func(analysis.Update)) *Remote {
	r := &Remote{base: newBase(host, pattern), service: service, onUpdate: onUpdate}
	r.unsubscribe = service.OnTaskfileUpdate(r.UpdateCache)
	return r
}

// ProvideTasks returns every task of the workspace.
func (r *Remote) ProvideTasks(ctx context.Context) ([]task.Info, error) {
	return r.provide(ctx, r.populate)
}

// TasksForDocument asks the service for one document's tasks.
func (r *Remote) TasksForDocument(ctx context.Context, path string) ([]task.Info, error) {
	return r.service.TasksForDocument(ctx, path)
}

// UpdateCache applies a scoped update: the entries of u.Scope are replaced
// and every other scope is left as it is.
func (r *Remote) UpdateCache(u analysis.Update) {
	slog.Debug("resolver: scoped update", "scope", u.Scope, "tasks", len(u.Tasks))
	r.cache.Update(u)
	if r.onUpdate != nil {
		r.onUpdate(u)
	}
}

// Close stops listening for service updates.
func (r *Remote) Close() {
	r.closeOnce.Do(r.unsubscribe)
}

func (r *Remote) populate(ctx context.Context) ([]task.Info, error) {
	paths, err := r.Documents(ctx)
	if err != nil {
		return nil, err
	}

	// A failed round trip leaves only that document empty until the next
	// refresh. Cancellation aborts the whole population.
	results := make([][]task.Info, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, p := range paths {
		g.Go(func() error {
			infos, err := r.service.TasksForDocument(gctx, p)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("resolver: document request failed", "path", p, "error", err)
				return nil
			}
			results[i] = infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []task.Info
	for i, infos := range results {
		for _, info := range infos {
			info.Scope = paths[i]
			all = append(all, info)
		}
	}
	return all, nil
}
