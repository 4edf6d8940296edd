package session

import (
	"encoding/json"
	"sync"

	"tabletop/internal/engine"
)

// live pairs one session's state with its single-writer lock. Every action
// against the session runs as a critical section under mu; snapshots for
// persistence and broadcast are marshalled before the lock is released, so
// observers only ever see fully-drained post-action state.
type live struct {
	mu    sync.Mutex
	state *engine.Session
}

// snapshot marshals the session state. Caller must hold mu.
func (l *live) snapshot() (json.RawMessage, error) {
	return json.Marshal(l.state)
}
