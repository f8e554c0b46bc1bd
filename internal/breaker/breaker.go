// Package breaker short-circuits compile requests while the engine is known
// to be down. It has two states and no automatic half-open probing: a
// passing health check or an explicit Reset closes it again.
package breaker

import (
	"sync"
	"time"
)

type State string

const (
	Closed State = "closed"
	Open   State = "open"
)

type Breaker struct {
	mu       sync.RWMutex
	state    State
	reason   string
	openedAt time.Time
	now      func() time.Time
}

func New() *Breaker {
	return &Breaker{state: Closed, now: time.Now}
}

// Allow reports whether a request may go through to the compiler.
func (b *Breaker) Allow() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == Closed
}

// Trip opens the breaker. Tripping an open breaker keeps the first reason.
func (b *Breaker) Trip(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open {
		return
	}
	b.state = Open
	b.reason = reason
	b.openedAt = b.now()
}

// Reset closes the breaker and reports whether it was open.
func (b *Breaker) Reset() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	was := b.state == Open
	b.state = Closed
	b.reason = ""
	b.openedAt = time.Time{}
	return was
}

type Snapshot struct {
	State    State     `json:"state"`
	Reason   string    `json:"reason,omitempty"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{State: b.state, Reason: b.reason, OpenedAt: b.openedAt}
}
