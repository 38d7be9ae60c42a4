// Package realtime fans live events out to a user's open connections.
// Services publish after their writes succeed; httpapi streams each
// subscription over a websocket.
package realtime

import (
	"sync"
	"time"

	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/pkg/logger"
)

// Event types pushed to clients.
const (
	EventMessage          = "message.created"
	EventConversationRead = "conversation.read"
	EventNotification     = "notification.created"
)

const defaultBuffer = 32

// Event is one push frame.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// Publisher delivers events to a user's live connections. Delivery is best
// effort; clients resync through the REST endpoints after reconnecting.
type Publisher interface {
	Publish(userID string, ev Event)
}

var _ Publisher = (*Hub)(nil)

// Hub tracks subscriptions per user.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *logger.Logger
}

// NewHub returns a hub whose subscriptions queue up to buffer events.
func NewHub(buffer int, log *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer, log: log}
}

// Subscription is one live connection's queue.
type Subscription struct {
	UserID string

	hub    *Hub
	events chan Event
	once   sync.Once
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Subscribe opens a queue for userID.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{UserID: userID, hub: h, events: make(chan Event, h.buffer)}
	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeConnected(1)
	h.log.WithField("user_id", userID).Debug("realtime subscription opened")
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[sub.UserID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
	close(sub.events)
	h.mu.Unlock()

	metrics.RealtimeConnected(-1)
	h.log.WithField("user_id", sub.UserID).Debug("realtime subscription closed")
}

// Publish queues ev on every subscription of userID. A full queue drops the
// event for that connection instead of blocking the publisher.
func (h *Hub) Publish(userID string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.events <- ev:
			metrics.RecordRealtimeEvent(ev.Type, true)
		default:
			metrics.RecordRealtimeEvent(ev.Type, false)
			h.log.WithField("user_id", userID).WithField("type", ev.Type).Warn("realtime queue full; event dropped")
		}
	}
}

// Connections returns how many subscriptions userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// CloseAll closes every open subscription, ending their streams.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var open []*Subscription
	for _, set := range h.subs {
		for sub := range set {
			open = append(open, sub)
		}
	}
	h.mu.RUnlock()
	for _, sub := range open {
		sub.Close()
	}
}
