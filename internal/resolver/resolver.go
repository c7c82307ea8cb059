// Package resolver discovers the tasks of a workspace and keeps them cached
// until the next invalidation.
//
// Two modes are provided. Local scans each Taskfile with the span scanner;
// Remote asks an analysis service for every document and listens for the
// service's pushed updates.
package resolver

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/twiced-technology-gmbh/taskwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

// DefaultPattern matches Taskfiles anywhere below a workspace folder.
const DefaultPattern = "**/Taskfile.{yml,yaml}"

// Host is the file system view of the workspace.
type Host interface {
	Folders() []workspace.Folder
	FindFiles(ctx context.Context, folder workspace.Folder, pattern string) ([]string, error)
	ReadFile(path string) (content string, found bool, err error)
}

// Resolver provides the tasks of a workspace.
type Resolver interface {
	// ProvideTasks returns every task in discovery order, populating the
	// cache on first use.
	ProvideTasks(ctx context.Context) ([]task.Info, error)

	// TasksForDocument returns the tasks declared in one document.
	TasksForDocument(ctx context.Context, path string) ([]task.Info, error)

	// Invalidate drops everything cached.
	Invalidate()
}

// fetchFunc returns the tasks of one document.
type fetchFunc func(ctx context.Context, path string) ([]task.Info, error)

// base is the caching and enumeration machinery shared by both modes.
type base struct {
	host    Host
	pattern string
	cache   *Cache
	group   singleflight.Group
}

func newBase(host Host, pattern string) base {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return base{host: host, pattern: pattern, cache: NewCache()}
}

// cachedTasks returns the committed tasks without populating.
func (b *base) cachedTasks() ([]task.Info, bool) { return b.cache.Snapshot() }

// Invalidate drops everything cached.
func (b *base) Invalidate() {
	slog.Debug("resolver: cache invalidated")
	b.cache.Invalidate()
}

// provide returns the memoized tasks or runs one shared population using
// populate. Concurrent callers wait for the same population.
func (b *base) provide(ctx context.Context, populate func(ctx context.Context) ([]task.Info, error)) ([]task.Info, error) {
	if tasks, ok := b.cache.Snapshot(); ok {
		return tasks, nil
	}

	v, err, _ := b.group.Do("tasks", func() (any, error) {
		if tasks, ok := b.cache.Snapshot(); ok {
			return tasks, nil
		}
		gen := b.cache.begin()
		tasks, err := populate(ctx)
		if err != nil {
			b.cache.abort()
			return nil, err
		}
		return b.cache.commit(gen, tasks), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]task.Info(nil), v.([]task.Info)...), nil
}

// Documents enumerates every matching document across the workspace
// folders, each path at most once, in folder order.
func (b *base) Documents(ctx context.Context) ([]string, error) {
	visited := make(map[string]bool)
	var paths []string
	for _, folder := range b.host.Folders() {
		found, err := b.host.FindFiles(ctx, folder, b.pattern)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, clierr.Wrap(clierr.EnumerationFailed, err, "enumerating %s", folder.Path).
				WithDetails(map[string]any{"folder": folder.Path})
		}
		for _, p := range found {
			if visited[p] {
				continue
			}
			visited[p] = true
			paths = append(paths, p)
		}
	}
	slog.Debug("resolver: documents enumerated", "count", len(paths))
	return paths, nil
}
