package workspace

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemManager(t *testing.T) (*Manager, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	m, err := NewManager(fs, "/data/downloads")
	require.NoError(t, err)
	return m, fs
}

func TestAcquireCreatesUniqueDirectories(t *testing.T) {
	m, fs := newMemManager(t)

	a, err := m.Acquire()
	require.NoError(t, err)
	b, err := m.Acquire()
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.True(t, strings.HasPrefix(filepath.Base(a.Dir()), dirPrefix))
	assert.Equal(t, "/data/downloads", filepath.Dir(a.Dir()))

	ok, err := afero.DirExists(fs, a.Dir())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWorkspaceFiles(t *testing.T) {
	m, fs := newMemManager(t)

	ws, err := m.Acquire()
	require.NoError(t, err)
	defer ws.Close()

	f, err := ws.Create("temp.mp4")
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	size, err := ws.Size("temp.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	data, err := afero.ReadFile(fs, ws.Path("temp.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, ws.Remove("temp.mp4"))
	_, err = ws.Size("temp.mp4")
	assert.Error(t, err)
	assert.NoError(t, ws.Remove("temp.mp4"), "removing a missing file is not an error")
}

func TestPathCannotEscapeWorkspace(t *testing.T) {
	m, _ := newMemManager(t)

	ws, err := m.Acquire()
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, filepath.Join(ws.Dir(), "passwd"), ws.Path("../../etc/passwd"))
}

func TestCloseRemovesEverything(t *testing.T) {
	m, fs := newMemManager(t)

	ws, err := m.Acquire()
	require.NoError(t, err)

	f, err := ws.Create("Song (High).mp3")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, ws.Close())
	require.NoError(t, ws.Close())

	ok, err := afero.Exists(fs, ws.Dir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetainOutlivesClose(t *testing.T) {
	m, fs := newMemManager(t)

	ws, err := m.Acquire()
	require.NoError(t, err)

	f, err := ws.Create("My Video.mp4")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	release := ws.Retain()
	require.NoError(t, ws.Close())

	ok, err := afero.Exists(fs, ws.Path("My Video.mp4"))
	require.NoError(t, err)
	assert.True(t, ok, "retained workspace must survive Close")

	require.NoError(t, release())
	require.NoError(t, release())

	ok, err = afero.DirExists(fs, ws.Dir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetainAfterRemovalIsNoop(t *testing.T) {
	m, fs := newMemManager(t)

	ws, err := m.Acquire()
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	release := ws.Retain()
	require.NoError(t, release())

	ok, err := afero.DirExists(fs, ws.Dir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepRemovesOnlyStaleWorkspaces(t *testing.T) {
	m, fs := newMemManager(t)
	root := "/data/downloads"

	orphan := filepath.Join(root, dirPrefix+"orphan")
	require.NoError(t, fs.MkdirAll(orphan, 0o755))
	fresh, err := m.Acquire()
	require.NoError(t, err)
	defer fresh.Close()

	require.NoError(t, fs.MkdirAll(filepath.Join(root, "keep-me"), 0o755))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, fs.Chtimes(orphan, old, old))
	require.NoError(t, fs.Chtimes(filepath.Join(root, "keep-me"), old, old))

	removed, err := m.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ok, _ := afero.Exists(fs, orphan)
	assert.False(t, ok)
	ok, _ = afero.Exists(fs, fresh.Dir())
	assert.True(t, ok)
	ok, _ = afero.Exists(fs, filepath.Join(root, "keep-me"))
	assert.True(t, ok)
}

func TestSweepSkipsLiveWorkspaces(t *testing.T) {
	m, fs := newMemManager(t)

	longRunning, err := m.Acquire()
	require.NoError(t, err)
	retained, err := m.Acquire()
	require.NoError(t, err)
	release := retained.Retain()
	require.NoError(t, retained.Close())

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, fs.Chtimes(longRunning.Dir(), old, old))
	require.NoError(t, fs.Chtimes(retained.Dir(), old, old))

	removed, err := m.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	ok, _ := afero.DirExists(fs, longRunning.Dir())
	assert.True(t, ok)
	ok, _ = afero.DirExists(fs, retained.Dir())
	assert.True(t, ok)

	// once released both are gone, and Sweep has nothing left to do
	require.NoError(t, longRunning.Close())
	require.NoError(t, release())

	removed, err = m.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	ok, _ = afero.DirExists(fs, longRunning.Dir())
	assert.False(t, ok)
}
