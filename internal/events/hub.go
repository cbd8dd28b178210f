package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event names mirrored to connected browser clients.
const (
	TypeActivity        = "nova-atividade"
	TypeUserUpdated     = "user-updated"
	TypeUserDeleted     = "user-deleted"
	TypeAbsenceAdded    = "falta-added"
	TypeAbsenceDeleted  = "falta-deleted"
	TypeDeviceStatus    = "device-status"
	TypeBiometricStatus = "biometria-status"
)

// Event is a single broadcast notification.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Time    time.Time   `json:"time"`
}

// Hub fans events out to subscribers. Publish never blocks; a
// subscriber that cannot keep up loses events rather than stalling
// the serial read path.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	logger *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[chan Event]struct{}), logger: logger}
}

// Subscribe registers a new listener and returns its channel.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers an event to every subscriber that has room.
func (h *Hub) Publish(eventType string, payload interface{}) {
	ev := Event{Type: eventType, Payload: payload, Time: time.Now()}
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("type", eventType))
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports the number of active listeners.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
