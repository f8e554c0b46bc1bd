package sandbox

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-compiler/internal/domain"
)

func newManager(t *testing.T, delay time.Duration) *Manager {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "jobs", "nested"), delay, nil)
	require.NoError(t, err)
	return m
}

func TestNewIsIdempotent(t *testing.T) {
	base := filepath.Join(t.TempDir(), "jobs")
	_, err := New(base, 0, nil)
	require.NoError(t, err)
	_, err = New(base, 0, nil)
	require.NoError(t, err)
}

func TestAllocateCreatesUniqueWorkspaces(t *testing.T) {
	m := newManager(t, 0)

	const n = 64
	var (
		mu    sync.Mutex
		paths = map[string]string{}
		wg    sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, path, err := m.Allocate()
			assert.NoError(t, err)
			mu.Lock()
			paths[path] = id
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, paths, n)
	for path, id := range paths {
		assert.True(t, domain.IsJobID(id))
		assert.Equal(t, filepath.Join(m.Base(), id), path)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestAllocateFailsWhenBaseIsNotADirectory(t *testing.T) {
	m := newManager(t, 0)
	require.NoError(t, os.Remove(m.Base()))
	require.NoError(t, os.WriteFile(m.Base(), []byte("not a directory"), 0o600))

	_, _, err := m.Allocate()
	assert.ErrorIs(t, err, domain.ErrSandboxAllocation)
	var ce *domain.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.KindServiceUnavailable, ce.Public())
}

func TestWriteInputOverwrites(t *testing.T) {
	m := newManager(t, 0)
	_, ws, err := m.Allocate()
	require.NoError(t, err)

	require.NoError(t, m.WriteInput(ws, "resume.tex", "a much longer first version"))
	require.NoError(t, m.WriteInput(ws, "resume.tex", "short"))

	b, err := os.ReadFile(filepath.Join(ws, "resume.tex"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(b))
}

func TestWriteInputRejectsPaths(t *testing.T) {
	m := newManager(t, 0)
	_, ws, err := m.Allocate()
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.tex", "sub/file.tex"} {
		assert.ErrorIs(t, m.WriteInput(ws, name, "x"), domain.ErrSandboxWrite, "name %q", name)
	}
	assert.ErrorIs(t, m.WriteInput(t.TempDir(), "resume.tex", "x"), domain.ErrSandboxWrite)
}

func TestReadOutput(t *testing.T) {
	m := newManager(t, 0)
	_, ws, err := m.Allocate()
	require.NoError(t, err)

	_, err = m.ReadOutput(ws, "resume.pdf")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(ws, "resume.pdf"), nil, 0o600))
	_, err = m.ReadOutput(ws, "resume.pdf")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(ws, "resume.pdf"), []byte("%PDF-1.5"), 0o600))
	b, err := m.ReadOutput(ws, "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.5", string(b))
}

func TestReadDiagnosticsMissingLog(t *testing.T) {
	m := newManager(t, 0)
	_, ws, err := m.Allocate()
	require.NoError(t, err)

	assert.Equal(t, "", m.ReadDiagnostics(ws, "resume.log"))

	require.NoError(t, os.WriteFile(filepath.Join(ws, "resume.log"), []byte("! Undefined control sequence."), 0o600))
	assert.Equal(t, "! Undefined control sequence.", m.ReadDiagnostics(ws, "resume.log"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newManager(t, 0)
	_, ws, err := m.Allocate()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "deep", "er"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "deep", "er", "f"), []byte("x"), 0o600))

	require.NoError(t, m.Release(ws))
	assert.NoDirExists(t, ws)
	require.NoError(t, m.Release(ws))
	require.NoError(t, m.Release(filepath.Join(m.Base(), domain.NewJobID())))
	require.NoError(t, m.Release(""))
}

func TestReleaseRefusesOutsideBase(t *testing.T) {
	m := newManager(t, 0)
	outside := t.TempDir()

	assert.Error(t, m.Release(outside))
	assert.Error(t, m.Release(m.Base()))
	assert.Error(t, m.Release(filepath.Join(m.Base(), "..")))
	assert.DirExists(t, outside)
	assert.DirExists(t, m.Base())
}

func TestScheduleReleaseRunsAfterDelay(t *testing.T) {
	m := newManager(t, 50*time.Millisecond)
	_, ws, err := m.Allocate()
	require.NoError(t, err)

	m.ScheduleRelease(ws)
	assert.DirExists(t, ws)
	assert.Equal(t, 1, m.Pending())

	m.Wait()
	assert.NoDirExists(t, ws)
	assert.Equal(t, 0, m.Pending())
}

func TestFlushRunsOnce(t *testing.T) {
	m := newManager(t, time.Hour)
	_, ws, err := m.Allocate()
	require.NoError(t, err)

	r := m.ScheduleRelease(ws)
	r.Flush()
	assert.NoDirExists(t, ws)
	r.Flush()
	m.Wait()
	assert.Equal(t, 0, m.Pending())
}

func TestFlushAll(t *testing.T) {
	m := newManager(t, time.Hour)
	var workspaces []string
	for i := 0; i < 5; i++ {
		_, ws, err := m.Allocate()
		require.NoError(t, err)
		m.ScheduleRelease(ws)
		workspaces = append(workspaces, ws)
	}
	require.Equal(t, 5, m.Pending())

	m.FlushAll()
	for _, ws := range workspaces {
		assert.NoDirExists(t, ws)
	}
	assert.Equal(t, 0, m.Pending())
}
