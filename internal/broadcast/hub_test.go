package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe("s1")
	b := h.Subscribe("s1")
	other := h.Subscribe("s2")

	h.Publish("s1", MsgGameUpdate, map[string]int{"turn": 1})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case data := <-sub.Receive():
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			assert.Equal(t, MsgGameUpdate, msg.Type)
		default:
			t.Fatal("expected a message")
		}
	}

	select {
	case <-other.Receive():
		t.Fatal("subscriber of another session got the message")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("s1")
	h.Unsubscribe("s1", sub)

	_, open := <-sub.Receive()
	assert.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount("s1"))

	// Double unsubscribe is harmless.
	h.Unsubscribe("s1", sub)
}

func TestPublishToEmptySession(t *testing.T) {
	h := NewHub(nil)
	h.Publish("nobody", MsgGameOver, map[string]int{"winnerIndex": 0})
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("s1")

	for i := 0; i < 200; i++ {
		h.Publish("s1", MsgGameUpdate, i)
	}
	// The subscriber buffer holds 64; the rest were dropped.
	assert.Equal(t, 64, len(sub.ch))
}

func TestSubscriberCount(t *testing.T) {
	h := NewHub(nil)
	assert.Equal(t, 0, h.SubscriberCount("s1"))
	a := h.Subscribe("s1")
	h.Subscribe("s1")
	assert.Equal(t, 2, h.SubscriberCount("s1"))
	h.Unsubscribe("s1", a)
	assert.Equal(t, 1, h.SubscriberCount("s1"))
}
