// Package workspace provides the host side of task discovery: workspace
// folders, Taskfile lookup by glob pattern, and document reads.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Folder is a workspace root.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Contains reports whether path lies inside the folder.
func (f Folder) Contains(path string) bool {
	rel, err := filepath.Rel(f.Path, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// FS is a workspace backed by the local file system.
type FS struct {
	mu      sync.RWMutex
	folders []Folder
	exclude map[string]bool
}

// New creates a workspace over the given root directories. Directory names
// in exclude are never descended into during discovery.
func New(roots, exclude []string) (*FS, error) {
	w := &FS{}
	if err := w.SetFolders(roots, exclude); err != nil {
		return nil, err
	}
	return w, nil
}

// SetFolders replaces the workspace roots and excluded directory names, as
// after a configuration change. On error the workspace is left unchanged.
func (w *FS) SetFolders(roots, exclude []string) error {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}

	var folders []Folder
	seen := make(map[string]bool, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving workspace folder %s: %w", root, err)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		folders = append(folders, Folder{Name: filepath.Base(abs), Path: abs})
	}

	w.mu.Lock()
	w.folders, w.exclude = folders, ex
	w.mu.Unlock()
	return nil
}

// Folders returns the workspace roots in configuration order.
func (w *FS) Folders() []Folder {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Folder(nil), w.folders...)
}

// FolderFor returns the innermost workspace folder containing path.
func (w *FS) FolderFor(path string) (Folder, bool) {
	var (
		best Folder
		ok   bool
	)
	for _, f := range w.Folders() {
		if f.Contains(path) && len(f.Path) >= len(best.Path) {
			best = f
			ok = true
		}
	}
	return best, ok
}

// FindFiles walks folder and returns the absolute paths of files whose
// folder-relative path matches pattern. Unreadable subdirectories are
// skipped; failing to read the folder itself is an error.
func (w *FS) FindFiles(ctx context.Context, folder Folder, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	var matches []string
	err := filepath.WalkDir(folder.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == folder.Path {
				return walkErr
			}
			slog.Debug("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != folder.Path && w.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(folder.Path, path)
		if err != nil {
			return nil
		}
		if Match(pattern, rel) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder.Path, err)
	}
	return matches, nil
}

func (w *FS) excluded(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.exclude[name]
}

// ReadFile returns the content of the document at path. A missing document
// is reported with found == false and no error.
func (w *FS) ReadFile(path string) (content string, found bool, err error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from workspace discovery
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), true, nil
}

// HasTaskfile reports whether any workspace folder contains a document
// matching pattern.
func (w *FS) HasTaskfile(ctx context.Context, pattern string) (bool, error) {
	for _, f := range w.Folders() {
		paths, err := w.FindFiles(ctx, f, pattern)
		if err != nil {
			return false, err
		}
		if len(paths) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Match reports whether a folder-relative path matches a doublestar pattern
// such as "**/Taskfile.{yml,yaml}".
func Match(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
	return err == nil && ok
}
