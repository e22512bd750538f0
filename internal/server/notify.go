package server

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/uis-platform/uisapi/internal/handler"
)

const subscriberBuffer = 16

// NotificationHub fans change events out to every open notification stream.
// A subscriber that falls behind loses events rather than blocking publishers.
type NotificationHub struct {
	mu     sync.Mutex
	subs   map[chan handler.Notification]struct{}
	closed bool
	log    zerolog.Logger
}

// NewNotificationHub returns an empty hub.
func NewNotificationHub(log zerolog.Logger) *NotificationHub {
	return &NotificationHub{
		subs: make(map[chan handler.Notification]struct{}),
		log:  log,
	}
}

// Subscribe registers a feed. After Close it returns an already closed feed.
func (h *NotificationHub) Subscribe() (<-chan handler.Notification, func()) {
	ch := make(chan handler.Notification, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() { h.unsubscribe(ch) }
}

func (h *NotificationHub) unsubscribe(ch chan handler.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish encodes data as JSON and offers it to every subscriber.
func (h *NotificationHub) Publish(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode notification")
		return
	}
	n := handler.Notification{Event: event, Data: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.log.Warn().Str("event", event).Msg("notification dropped for slow subscriber")
		}
	}
}

// Subscribers returns the number of open feeds.
func (h *NotificationHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every feed; streams return and later subscriptions end at once.
func (h *NotificationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
