package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// GameRow is a published game definition in the database. The definition
// itself is an opaque JSON document produced by the editor.
type GameRow struct {
	ID             string
	Name           string
	DefinitionJSON string
	CreatedAt      time.Time
}

// SessionRow represents a session in the database.
type SessionRow struct {
	ID        string
	GameID    string
	Status    string // "playing", "finished"
	CreatedAt time.Time
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			definition_json TEXT NOT NULL,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			game_id    TEXT NOT NULL REFERENCES games(id),
			status     TEXT NOT NULL DEFAULT 'playing',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS session_state (
			session_id TEXT PRIMARY KEY REFERENCES sessions(id),
			state_json TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// CreateGame stores a published game definition.
func (s *Store) CreateGame(id, name, definitionJSON string) error {
	_, err := s.db.Exec(
		"INSERT INTO games (id, name, definition_json) VALUES (?, ?, ?)",
		id, name, definitionJSON,
	)
	return err
}

// GetGame retrieves a published game by id.
func (s *Store) GetGame(id string) (*GameRow, error) {
	row := s.db.QueryRow("SELECT id, name, definition_json, created_at FROM games WHERE id = ?", id)
	var gr GameRow
	if err := row.Scan(&gr.ID, &gr.Name, &gr.DefinitionJSON, &gr.CreatedAt); err != nil {
		return nil, err
	}
	return &gr, nil
}

// ListGames returns all published games, newest first, without the
// definition bodies.
func (s *Store) ListGames() ([]GameRow, error) {
	rows, err := s.db.Query("SELECT id, name, created_at FROM games ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []GameRow
	for rows.Next() {
		var gr GameRow
		if err := rows.Scan(&gr.ID, &gr.Name, &gr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, gr)
	}
	return result, rows.Err()
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(id, gameID string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, game_id, status) VALUES (?, ?, 'playing')",
		id, gameID,
	)
	return err
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(id string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT id, game_id, status, created_at FROM sessions WHERE id = ?", id)
	var sr SessionRow
	if err := row.Scan(&sr.ID, &sr.GameID, &sr.Status, &sr.CreatedAt); err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(id, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE id = ?", status, id)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT id, game_id, status, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT id, game_id, status, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.ID, &sr.GameID, &sr.Status, &sr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// SaveSessionState upserts the session state JSON document.
func (s *Store) SaveSessionState(sessionID, stateJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO session_state (session_id, state_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, sessionID, stateJSON)
	return err
}

// GetSessionState retrieves the session state JSON document.
func (s *Store) GetSessionState(sessionID string) (string, error) {
	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM session_state WHERE session_id = ?", sessionID).Scan(&stateJSON)
	return stateJSON, err
}

// DeleteSession removes a session and its state.
func (s *Store) DeleteSession(id string) error {
	_, err := s.db.Exec("DELETE FROM session_state WHERE session_id = ?", id)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
