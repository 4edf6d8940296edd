package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabletop/internal/broadcast"
	"tabletop/internal/engine"
	"tabletop/internal/flow"
	"tabletop/internal/session"
	"tabletop/internal/storage"
)

// Server is the HTTP server.
type Server struct {
	mux     *http.ServeMux
	store   *storage.Store
	manager *session.Manager
	hub     *broadcast.Hub
	log     *zap.Logger
}

// New creates a server with all routes.
func New(store *storage.Store, manager *session.Manager, hub *broadcast.Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mux:     http.NewServeMux(),
		store:   store,
		manager: manager,
		hub:     hub,
		log:     log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("POST /api/games", s.handlePublishGame)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	s.mux.HandleFunc("POST /api/games/{id}/sessions", s.handleStartSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/action", s.handleAction)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type gameSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListGames()
	if err != nil {
		s.writeError(w, err)
		return
	}
	games := make([]gameSummary, 0, len(rows))
	for _, row := range rows {
		games = append(games, gameSummary{ID: row.ID, Name: row.Name})
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handlePublishGame(w http.ResponseWriter, r *http.Request) {
	var def engine.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "bad_request"})
		return
	}
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "name required", Code: "bad_request"})
		return
	}
	if err := def.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "configuration_error"})
		return
	}
	data, err := json.Marshal(&def)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := uuid.NewString()
	if err := s.store.CreateGame(id, def.Name, string(data)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.GetGame(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "game not found", Code: "not_found"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         row.ID,
		"name":       row.Name,
		"definition": json.RawMessage(row.DefinitionJSON),
	})
}

type startSessionRequest struct {
	Players []string `json:"players"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "bad_request"})
		return
	}
	snap, err := s.manager.Start(r.PathValue("id"), req.Players)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, http.StatusCreated, snap)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.State(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, snap)
}

type actionRequest struct {
	Type        engine.ActionType `json:"type"`
	PlayerIndex int               `json:"playerIndex"`
	CardID      string            `json:"cardId,omitempty"`
	Position    int               `json:"position,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: "bad_request"})
		return
	}
	snap, err := s.manager.SubmitAction(r.PathValue("id"), req.PlayerIndex, engine.Action{
		Type:     req.Type,
		CardID:   req.CardID,
		Position: req.Position,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, snap)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorCode maps an error to its HTTP status and the code clients branch on.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrInvalidPlayer):
		return http.StatusBadRequest, "invalid_player"
	case errors.Is(err, engine.ErrNotYourTurn):
		return http.StatusBadRequest, "not_your_turn"
	case errors.Is(err, engine.ErrStepMismatch):
		return http.StatusBadRequest, "step_mismatch"
	case errors.Is(err, engine.ErrCardNotInHand):
		return http.StatusBadRequest, "card_not_in_hand"
	case errors.Is(err, engine.ErrConditionsNotMet):
		return http.StatusBadRequest, "conditions_not_met"
	case errors.Is(err, engine.ErrDeckEmpty):
		return http.StatusBadRequest, "deck_empty"
	case errors.Is(err, engine.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	case errors.Is(err, engine.ErrGameOver):
		return http.StatusBadRequest, "game_over"
	case errors.Is(err, flow.ErrConfiguration):
		return http.StatusInternalServerError, "configuration_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
