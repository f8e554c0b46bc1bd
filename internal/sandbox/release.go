package sandbox

import (
	"sync"
	"time"
)

// PendingRelease is a scheduled workspace deletion. It runs exactly once:
// either when the delay elapses or when Flush is called, whichever is first.
type PendingRelease struct {
	m     *Manager
	path  string
	once  sync.Once
	timer *time.Timer
}

// ScheduleRelease deletes workspace after the manager's release delay. The
// delay leaves time for a response that still streams bytes read from the
// workspace.
func (m *Manager) ScheduleRelease(workspace string) *PendingRelease {
	r := &PendingRelease{m: m, path: workspace}
	m.wg.Add(1)
	m.mu.Lock()
	m.pending[r] = struct{}{}
	r.timer = time.AfterFunc(m.delay, r.run)
	m.mu.Unlock()
	return r
}

// Flush skips the remaining delay and deletes now. Safe to call more than
// once and after the timer already fired; it returns once the deletion is done.
func (r *PendingRelease) Flush() {
	r.timer.Stop()
	r.run()
}

func (r *PendingRelease) run() {
	r.once.Do(func() {
		defer r.m.wg.Done()
		r.m.mu.Lock()
		delete(r.m.pending, r)
		r.m.mu.Unlock()
		if err := r.m.Release(r.path); err != nil {
			r.m.log.Error("sandbox release failed", "path", r.path, "error", err)
			return
		}
		r.m.log.Debug("sandbox released", "path", r.path)
	})
}

// Pending reports how many scheduled releases have not run yet.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// FlushAll runs every outstanding release immediately and waits for them.
// Used on shutdown so nothing is left behind under the base directory.
func (m *Manager) FlushAll() {
	m.mu.Lock()
	rs := make([]*PendingRelease, 0, len(m.pending))
	for r := range m.pending {
		rs = append(rs, r)
	}
	m.mu.Unlock()
	for _, r := range rs {
		r.Flush()
	}
	m.wg.Wait()
}

// Wait blocks until every scheduled release has run.
func (m *Manager) Wait() { m.wg.Wait() }
