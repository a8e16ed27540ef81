package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFrameFormat(t *testing.T) {
	frame, err := Frame(Event{Type: EventNewEmail, Data: map[string]any{"email_id": 7}})
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"new_email\",\"data\":{\"email_id\":7}}\n\n", string(frame))
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub(zap.NewNop())

	a := hub.Subscribe()
	b := hub.Subscribe()
	require.Equal(t, 2, hub.ClientCount())

	hub.Broadcast(Event{Type: EventTaskCreated, Data: map[string]any{"id": 1}})

	for _, ch := range []chan []byte{a, b} {
		select {
		case frame := <-ch:
			assert.Contains(t, string(frame), `"type":"task_created"`)
		default:
			t.Fatal("client did not receive the frame")
		}
	}

	// One frame per broadcast, not one per client pair.
	select {
	case <-a:
		t.Fatal("client received a duplicate frame")
	default:
	}
}

func TestUnsubscribeRemovesClient(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-ch
	assert.False(t, open)

	// A second unsubscribe of the same channel is a no-op.
	hub.Unsubscribe(ch)
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop())

	slow := hub.Subscribe()
	for i := 0; i < cap(slow)+1; i++ {
		hub.Broadcast(Event{Type: EventTaskUpdated, Data: i})
	}

	assert.Equal(t, 0, hub.ClientCount())
}
