// Package sandbox gives every compilation job its own directory under a
// shared base directory and makes sure that directory is removed again.
package sandbox

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"resume-compiler/internal/domain"
)

// Manager owns the base directory. It is safe for concurrent use; jobs never
// share a directory so the only shared state is the set of pending releases.
type Manager struct {
	base  string
	delay time.Duration
	log   *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[*PendingRelease]struct{}
}

// New creates base (and parents) if needed. An existing directory is fine.
func New(base string, delay time.Duration, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve sandbox base %q", base)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create sandbox base %q", abs)
	}
	return &Manager{base: abs, delay: delay, log: log, pending: map[*PendingRelease]struct{}{}}, nil
}

func (m *Manager) Base() string { return m.base }

// Allocate creates <base>/<id> for a fresh job id. A pre-existing directory
// with the same name is treated as a failure, never reused.
func (m *Manager) Allocate() (string, string, error) {
	if err := os.MkdirAll(m.base, 0o755); err != nil {
		return "", "", domain.NewError(domain.KindSandboxAllocation, "could not prepare a workspace for this document", err)
	}
	id := domain.NewJobID()
	path := filepath.Join(m.base, id)
	if err := os.Mkdir(path, 0o700); err != nil {
		return "", "", domain.NewError(domain.KindSandboxAllocation, "could not prepare a workspace for this document",
			errors.Wrapf(err, "mkdir %s", path))
	}
	m.log.Debug("sandbox allocated", "job_id", id, "path", path)
	return id, path, nil
}

// WriteInput writes content to name inside the workspace, truncating any
// previous file.
func (m *Manager) WriteInput(workspace, name, content string) error {
	target, err := m.fileIn(workspace, name)
	if err != nil {
		return domain.NewError(domain.KindSandboxWrite, "could not stage the document for compilation", err)
	}
	if err := os.WriteFile(target, []byte(content), 0o600); err != nil {
		return domain.NewError(domain.KindSandboxWrite, "could not stage the document for compilation",
			errors.Wrapf(err, "write %s", target))
	}
	return nil
}

// ReadOutput returns the named output file. Absent or empty output means the
// engine did not produce anything and yields KindArtifactNotFound.
func (m *Manager) ReadOutput(workspace, name string) ([]byte, error) {
	target, err := m.fileIn(workspace, name)
	if err != nil {
		return nil, domain.NewError(domain.KindArtifactNotFound, "the engine produced no document", err)
	}
	b, err := os.ReadFile(target)
	if err != nil {
		return nil, domain.NewError(domain.KindArtifactNotFound, "the engine produced no document",
			errors.Wrapf(err, "read %s", target))
	}
	if len(b) == 0 {
		return nil, domain.NewError(domain.KindArtifactNotFound, "the engine produced no document",
			errors.Newf("%s is empty", target))
	}
	return b, nil
}

// ReadDiagnostics returns the engine log, or "" if the engine never wrote one.
func (m *Manager) ReadDiagnostics(workspace, name string) string {
	target, err := m.fileIn(workspace, name)
	if err != nil {
		return ""
	}
	b, err := os.ReadFile(target)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn("sandbox: diagnostics unreadable", "path", target, "error", err)
		}
		return ""
	}
	return string(b)
}

// Release removes the workspace and everything below it. Missing paths are
// not an error. Paths outside the base directory are refused.
func (m *Manager) Release(workspace string) error {
	if workspace == "" {
		return nil
	}
	if err := m.contains(workspace); err != nil {
		return err
	}
	if err := os.RemoveAll(workspace); err != nil {
		return errors.Wrapf(err, "remove %s", workspace)
	}
	return nil
}

func (m *Manager) contains(workspace string) error {
	rel, err := filepath.Rel(m.base, filepath.Clean(workspace))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return errors.Newf("refusing to touch %q outside sandbox base %q", workspace, m.base)
	}
	return nil
}

func (m *Manager) fileIn(workspace, name string) (string, error) {
	if err := m.contains(workspace); err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Newf("invalid sandbox file name %q", name)
	}
	return filepath.Join(workspace, name), nil
}
