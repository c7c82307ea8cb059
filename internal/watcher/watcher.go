// Package watcher provides debounced file system watching for the Taskfiles of
// a workspace.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/twiced-technology-gmbh/taskwatch/internal/workspace"
)

// debounceDelay is the time to wait after the last file event before triggering
// a callback. This coalesces rapid changes (e.g., an editor's save dance or a
// git checkout) into a single notification.
const debounceDelay = 100 * time.Millisecond

// Options selects what the watcher reacts to.
type Options struct {
	// Pattern is the doublestar glob Taskfiles match, relative to a folder.
	Pattern string
	// Exclude lists directory names that are never watched.
	Exclude []string
	// Files lists single files, such as the config file, that fire the
	// callback too. Their directories are watched without recursion, so a
	// file may not exist yet.
	Files []string
	// Delay overrides debounceDelay when positive.
	Delay time.Duration
}

// Watcher watches workspace folders recursively and invokes a callback, with
// debouncing, whenever a Taskfile is created, written, removed or renamed.
type Watcher struct {
	fsw      *fsnotify.Watcher
	folders  []workspace.Folder
	opts     Options
	callback func()

	mu    sync.Mutex
	timer *time.Timer
	dirs  map[string]bool
}

// New creates a Watcher over folders. Every directory below a folder is
// watched except excluded ones; directories created later are added as they
// appear.
func New(folders []workspace.Folder, opts Options, callback func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if opts.Delay <= 0 {
		opts.Delay = debounceDelay
	}

	w := &Watcher{
		fsw:      fsw,
		folders:  folders,
		opts:     opts,
		callback: callback,
		dirs:     make(map[string]bool),
	}
	for _, f := range folders {
		if err := w.addTree(f.Path); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	for _, f := range opts.Files {
		dir := filepath.Dir(f)
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			slog.Debug("watcher: skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(w.opts.Exclude, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == root {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			slog.Debug("watcher: cannot watch directory", "path", path, "error", err)
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// Run starts the watch loop. It blocks until the context is canceled.
// Errors from the underlying watcher are passed to the optional errFn callback.
func (w *Watcher) Run(ctx context.Context, errFn func(error)) {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.debounce()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errFn != nil {
				errFn(err)
			}
		}
	}
}

// relevant reports whether event can change the set of tasks. New
// directories are watched as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.inFolder(event.Name) || slices.Contains(w.opts.Exclude, info.Name()) {
				return false
			}
			if err := w.addTree(event.Name); err != nil {
				slog.Debug("watcher: cannot watch new directory", "path", event.Name, "error", err)
			}
			return true
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		wasDir := w.dirs[event.Name]
		delete(w.dirs, event.Name)
		w.mu.Unlock()
		if wasDir {
			return true
		}
	}

	return w.matches(event.Name)
}

func (w *Watcher) inFolder(path string) bool {
	for _, f := range w.folders {
		if f.Contains(path) {
			return true
		}
	}
	return false
}

func (w *Watcher) matches(path string) bool {
	if slices.Contains(w.opts.Files, path) {
		return true
	}
	for _, f := range w.folders {
		if !f.Contains(path) {
			continue
		}
		rel, err := filepath.Rel(f.Path, path)
		if err != nil {
			continue
		}
		if workspace.Match(w.opts.Pattern, rel) {
			return true
		}
	}
	return false
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Delay, w.callback)
}
