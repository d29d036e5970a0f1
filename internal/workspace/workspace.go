// Package workspace hands out per-request scratch directories.
//
// Every fetch runs inside its own directory under the configured root. The directory and
// everything in it is removed when the request finishes, whatever the outcome, unless a
// background task still holds it through Retain. Directories orphaned by a crash are
// reclaimed by Sweep.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const dirPrefix = "req-"

// Manager creates and reclaims workspaces under a root directory
type Manager struct {
	fs   afero.Afero
	root string

	mu   sync.Mutex
	live map[string]struct{}
}

// NewManager creates the root directory if absent and returns a manager for it
func NewManager(fs afero.Fs, root string) (*Manager, error) {
	m := &Manager{
		fs:   afero.Afero{Fs: fs},
		root: filepath.Clean(root),
		live: make(map[string]struct{}),
	}
	if err := m.fs.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return m, nil
}

// Acquire creates a fresh workspace. Callers must Close it.
func (m *Manager) Acquire() (*Workspace, error) {
	dir, err := m.fs.TempDir(m.root, dirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	m.mu.Lock()
	m.live[dir] = struct{}{}
	m.mu.Unlock()

	return &Workspace{fs: m.fs, dir: dir, manager: m, refs: 1}, nil
}

func (m *Manager) isLive(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[dir]
	return ok
}

func (m *Manager) forget(dir string) {
	m.mu.Lock()
	delete(m.live, dir)
	m.mu.Unlock()
}

// Sweep removes workspaces last modified before now-olderThan and returns how many it removed.
// Workspaces still held by a request or a background task are never removed.
func (m *Manager) Sweep(olderThan time.Duration) (int, error) {
	entries, err := m.fs.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list workspace root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		if entry.ModTime().After(cutoff) || m.isLive(dir) {
			continue
		}
		if err := m.fs.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("failed to remove stale workspace %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

// Workspace is a scratch directory owned by a single request
type Workspace struct {
	fs      afero.Afero
	dir     string
	manager *Manager

	closeOnce sync.Once
	mu        sync.Mutex
	refs      int
	removed   bool
	removeErr error
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the workspace directory. Only the base name of name is used.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Create opens a new file inside the workspace for writing
func (w *Workspace) Create(name string) (afero.File, error) {
	f, err := w.fs.OpenFile(w.Path(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes a single file from the workspace. Missing files are not an error.
func (w *Workspace) Remove(name string) error {
	if err := w.fs.Remove(w.Path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Size returns the size of a workspace file
func (w *Workspace) Size(name string) (int64, error) {
	info, err := w.fs.Stat(w.Path(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Retain keeps the workspace on disk past Close until the returned release func is called.
// Retaining a workspace that has already been removed returns a no-op release.
func (w *Workspace) Retain() (release func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.removed {
		return func() error { return nil }
	}
	w.refs++

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = w.release() })
		return err
	}
}

// Close gives up the request's hold on the workspace. The directory and everything in it is
// removed once no Retain is outstanding. It is safe to call more than once.
func (w *Workspace) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.release() })
	return err
}

func (w *Workspace) release() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.refs--
	if w.refs > 0 || w.removed {
		return nil
	}

	w.removed = true
	w.removeErr = w.fs.RemoveAll(w.dir)
	if w.manager != nil {
		w.manager.forget(w.dir)
	}
	return w.removeErr
}
