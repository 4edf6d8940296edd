package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tabletop/internal/broadcast"
	"tabletop/internal/engine"
	"tabletop/internal/session"
	"tabletop/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	mgr *session.Manager
	hub *broadcast.Hub
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := broadcast.NewHub(nil)
	mgr := session.NewManager(engine.New(nil), store, hub, nil)
	srv := New(store, mgr, hub, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr, hub: hub}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- Fixtures ---

const testGameJSON = `{
	"name": "draw-race",
	"ruleSet": {
		"handSize": 2,
		"winConditions": [
			{"type": "attribute", "attribute": "card_count", "comparison": "equals", "value": 0}
		]
	},
	"gameFlow": [
		{"id": "start", "label": "Start turn", "next": "draw"},
		{"id": "draw", "type": "draw_card", "next": "end"},
		{"id": "end", "type": "end_turn", "next": "start"}
	],
	"deck": [
		{"id": "c1"}, {"id": "c2"}, {"id": "c3"}, {"id": "c4"},
		{"id": "c5"}, {"id": "c6"}, {"id": "c7"}, {"id": "c8"}
	]
}`

// --- REST API helpers ---

func publishGameViaAPI(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/games", "application/json", strings.NewReader(testGameJSON))
	if err != nil {
		t.Fatalf("POST /api/games: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.ID == "" {
		t.Fatal("expected non-empty game id")
	}
	return result.ID
}

func startSessionViaAPI(t *testing.T, ts *httptest.Server, gameID string) *engine.Session {
	t.Helper()
	body := `{"players":["alice","bob"]}`
	resp, err := http.Post(ts.URL+"/api/games/"+gameID+"/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var s engine.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return &s
}

func postAction(t *testing.T, ts *httptest.Server, sessionID, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions/"+sessionID+"/action", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST action: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}
