package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"mailtoys/pkg/metrics"
)

// Event is the envelope written to every connected client as one
// "data: {...}\n\n" frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types pushed to dashboard clients.
const (
	EventConnected   = "connected"
	EventNewEmail    = "new_email"
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// Hub tracks connected SSE clients and fans events out to them. There is no
// replay: clients that connect after an event never see it and re-fetch state
// over the REST surface instead.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		logger:  logger,
	}
}

// Subscribe registers a client and returns its frame channel. The channel is
// buffered; a client that cannot keep up is dropped rather than blocking the
// broadcaster.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 16)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SSEClients.Set(float64(total))
	h.logger.Info("SSE client connected", zap.Int("total_clients", total))
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SSEClients.Set(float64(total))
	h.logger.Info("SSE client disconnected", zap.Int("total_clients", total))
}

// Broadcast serializes the event and writes one frame to every connected
// client. Slow clients are unsubscribed instead of retried.
func (h *Hub) Broadcast(ev Event) {
	frame, err := Frame(ev)
	if err != nil {
		h.logger.Error("Failed to serialize SSE event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	var stale []chan []byte
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
			stale = append(stale, ch)
		}
	}
	for _, ch := range stale {
		delete(h.clients, ch)
		close(ch)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SSEClients.Set(float64(total))
	if len(stale) > 0 {
		h.logger.Warn("Dropped slow SSE clients", zap.Int("dropped", len(stale)))
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Frame renders an event as a single SSE data frame.
func Frame(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
