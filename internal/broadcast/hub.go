package broadcast

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Message kinds pushed to subscribers.
const (
	MsgSessionStarted = "session_started"
	MsgGameUpdate     = "game_update"
	MsgGameOver       = "game_over"
)

// Message is the envelope delivered to every subscriber of a session.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber is one live connection's view of a session's updates.
type Subscriber struct {
	ch chan []byte
}

// Receive returns the channel updates arrive on. The channel is closed when
// the subscriber is removed from the hub.
func (s *Subscriber) Receive() <-chan []byte {
	return s.ch
}

// Hub fans session updates out to subscribed connections. Delivery is
// best-effort: a subscriber whose buffer is full misses the update and is
// expected to re-fetch full state.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[string]map[*Subscriber]struct{}),
		log:  log,
	}
}

// Subscribe registers a new subscriber for a session id.
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sessionID string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

// Publish sends a message to every subscriber of the session. Payloads that
// fail to marshal are dropped with a log entry; subscribers with full
// buffers are skipped.
func (h *Hub) Publish(sessionID, msgType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal broadcast payload", zap.String("session", sessionID), zap.Error(err))
		return
	}
	data, err := json.Marshal(Message{Type: msgType, Payload: body})
	if err != nil {
		h.log.Error("marshal broadcast envelope", zap.String("session", sessionID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- data:
		default:
			// drop message if buffer full
		}
	}
}

// SubscriberCount reports how many connections are subscribed to a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
