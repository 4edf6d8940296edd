package server

import (
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// handleWebSocket subscribes a connection to a session's updates. The
// session id comes from the query string; per-connection identity arrives
// as an externally-verified player credential and is only logged here.
// Actions travel over HTTP, so the read side exists just to notice the
// client going away; a reconnecting client resubscribes and re-fetches full
// state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter required", http.StatusBadRequest)
		return
	}
	if !s.manager.Has(sessionID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	player := r.URL.Query().Get("player")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	sub := s.hub.Subscribe(sessionID)
	defer s.hub.Unsubscribe(sessionID, sub)
	s.log.Info("subscriber connected",
		zap.String("session", sessionID),
		zap.String("player", player))

	// Writer goroutine: push hub messages to the socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Receive() {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop: drain until the client disconnects.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
	s.hub.Unsubscribe(sessionID, sub)
	<-done
	s.log.Info("subscriber disconnected",
		zap.String("session", sessionID),
		zap.String("player", player))
}
