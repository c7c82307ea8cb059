package resolver

import (
	"sync"

	"github.com/twiced-technology-gmbh/taskwatch/internal/analysis"
	"github.com/twiced-technology-gmbh/taskwatch/internal/task"
)

// Cache holds the discovered tasks of a workspace in discovery order.
//
// A population is bracketed by begin and commit. Invalidate bumps the
// generation so a population that started earlier never commits. Scoped
// updates received while a population is in flight are applied to the
// current entries and replayed on top of the committed result.
type Cache struct {
	mu      sync.Mutex
	tasks   []task.Info
	valid   bool
	gen     uint64
	flight  bool
	pending []analysis.Update
}

// NewCache returns an empty, unpopulated cache.
func NewCache() *Cache {
	return &Cache{}
}

// Snapshot returns a copy of the cached tasks and whether the cache is
// populated.
func (c *Cache) Snapshot() ([]task.Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return nil, false
	}
	return append([]task.Info(nil), c.tasks...), true
}

// Update replaces every entry of u.Scope with u.Tasks, leaving other scopes
// untouched. Applying the same update twice has the same effect as once.
// An update for a cache that is neither populated nor being populated is
// dropped: the next population reads the authoritative state anyway.
func (c *Cache) Update(u analysis.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flight {
		c.pending = append(c.pending, u)
	}
	if c.valid {
		c.tasks = upsert(c.tasks, u)
	}
}

// Invalidate clears the cache. A population in flight is discarded.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = nil
	c.valid = false
	c.gen++
	c.pending = nil
}

// Len returns the number of cached tasks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

func (c *Cache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flight = true
	c.pending = nil
	return c.gen
}

// commit stores a finished population unless the cache was invalidated
// since begin. It returns the tasks the caller should see.
func (c *Cache) commit(gen uint64, tasks []task.Info) []task.Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range c.pending {
		tasks = upsert(tasks, u)
	}
	c.flight = false
	c.pending = nil

	if gen != c.gen {
		return tasks
	}
	c.tasks = tasks
	c.valid = true
	return append([]task.Info(nil), tasks...)
}

func (c *Cache) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flight = false
	c.pending = nil
}

func upsert(tasks []task.Info, u analysis.Update) []task.Info {
	out := make([]task.Info, 0, len(tasks)+len(u.Tasks))
	for _, t := range tasks {
		if t.Scope != u.Scope {
			out = append(out, t)
		}
	}
	for _, t := range u.Tasks {
		t.Scope = u.Scope
		out = append(out, t)
	}
	return out
}
