package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabletop/internal/broadcast"
	"tabletop/internal/engine"
	"tabletop/internal/flow"
	"tabletop/internal/storage"
)

// Session statuses as stored.
const (
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Manager owns all live sessions. Actions against one session are mutually
// exclusive; different sessions proceed in parallel.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*live
	engine   *engine.Engine
	store    *storage.Store
	hub      *broadcast.Hub
	log      *zap.Logger
}

// NewManager creates a session manager.
func NewManager(eng *engine.Engine, store *storage.Store, hub *broadcast.Hub, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*live),
		engine:   eng,
		store:    store,
		hub:      hub,
		log:      log,
	}
}

// Start creates a live session from a published game: loads the definition,
// deals the deck, drains the flow to the first interactive step, persists,
// and broadcasts session_started. Returns the initial snapshot.
func (m *Manager) Start(gameID string, playerNames []string) (json.RawMessage, error) {
	row, err := m.store.GetGame(gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: game %q", engine.ErrNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	var def engine.Definition
	if err := json.Unmarshal([]byte(row.DefinitionJSON), &def); err != nil {
		return nil, fmt.Errorf("%w: stored definition for game %q does not decode: %v", flow.ErrConfiguration, gameID, err)
	}

	state, err := m.engine.NewSession(uuid.NewString(), gameID, def, playerNames)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateSession(state.ID, gameID); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	l := &live{state: state}
	l.mu.Lock()
	snap, err := l.snapshot()
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	m.mu.Lock()
	m.sessions[state.ID] = l
	m.mu.Unlock()

	m.persist(state.ID, snap, state.Finished())
	m.hub.Publish(state.ID, broadcast.MsgSessionStarted, snap)
	return snap, nil
}

// SubmitAction is the single entry point for player actions. The action
// runs to completion (including auto-step draining) inside the session's
// critical section; persistence and broadcast use the snapshot taken there.
func (m *Manager) SubmitAction(sessionID string, playerIndex int, act engine.Action) (json.RawMessage, error) {
	l, ok := m.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrNotFound, sessionID)
	}

	l.mu.Lock()
	if err := m.engine.Apply(l.state, playerIndex, act); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	snap, err := l.snapshot()
	finished := l.state.Finished()
	winner := l.state.WinnerIndex
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	m.persist(sessionID, snap, finished)
	m.hub.Publish(sessionID, broadcast.MsgGameUpdate, snap)
	if finished {
		m.hub.Publish(sessionID, broadcast.MsgGameOver, gameOverPayload{WinnerIndex: winner})
	}
	return snap, nil
}

type gameOverPayload struct {
	WinnerIndex int `json:"winnerIndex"`
}

// State returns a consistent snapshot of a live session.
func (m *Manager) State(sessionID string) (json.RawMessage, error) {
	l, ok := m.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrNotFound, sessionID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Has reports whether a session is live.
func (m *Manager) Has(sessionID string) bool {
	_, ok := m.get(sessionID)
	return ok
}

func (m *Manager) get(sessionID string) (*live, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.sessions[sessionID]
	return l, ok
}

// persist writes the snapshot and status. Failures are logged, not returned:
// the caller's response carries the canonical state either way, and the next
// action retries the write.
func (m *Manager) persist(sessionID string, snap json.RawMessage, finished bool) {
	if err := m.store.SaveSessionState(sessionID, string(snap)); err != nil {
		m.log.Error("save session state", zap.String("session", sessionID), zap.Error(err))
	}
	if finished {
		if err := m.store.UpdateSessionStatus(sessionID, StatusFinished); err != nil {
			m.log.Error("update session status", zap.String("session", sessionID), zap.Error(err))
		}
	}
}

// Restore loads unfinished sessions from the database on startup.
func (m *Manager) Restore() error {
	rows, err := m.store.ListSessions("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		if row.Status == StatusFinished {
			continue
		}
		stateJSON, err := m.store.GetSessionState(row.ID)
		if err != nil {
			m.log.Warn("skipping session: no state", zap.String("session", row.ID), zap.Error(err))
			continue
		}
		var state engine.Session
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			m.log.Warn("skipping session: state does not decode", zap.String("session", row.ID), zap.Error(err))
			continue
		}
		m.mu.Lock()
		m.sessions[row.ID] = &live{state: &state}
		m.mu.Unlock()
	}
	return nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if err := m.store.DeleteSession(sessionID); err != nil {
		m.log.Error("delete session", zap.String("session", sessionID), zap.Error(err))
	}
}

// CleanupLoop removes stale sessions periodically.
func (m *Manager) CleanupLoop(interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		m.cleanup(maxAge)
	}
}

func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	now := time.Now()
	for _, id := range ids {
		l, ok := m.get(id)
		if !ok {
			continue
		}
		l.mu.Lock()
		finished := l.state.Finished()
		l.mu.Unlock()

		idle := m.hub.SubscriberCount(id) == 0
		if !finished && !idle {
			continue
		}
		row, err := m.store.GetSession(id)
		if err != nil {
			m.Remove(id)
			continue
		}
		if now.Sub(row.CreatedAt) > maxAge {
			m.log.Info("cleaning up session", zap.String("session", id))
			m.Remove(id)
		}
	}
}
