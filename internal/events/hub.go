// Package events fans monitor activity out to in-process subscribers and
// websocket clients, keeping a short history for late joiners.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/mention-launcher/internal/domain"
)

const defaultSubscriberBuffer = 64

// Publisher is implemented by anything that accepts monitor events.
type Publisher interface {
	Publish(e domain.Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(domain.Event) {}

type subscriber struct {
	ch      chan domain.Event
	dropped int
}

// Hub keeps a ring of recent events and broadcasts new ones.
type Hub struct {
	mu     sync.Mutex
	ring   *Ring
	subs   map[*subscriber]struct{}
	nextID int64
	now    func() time.Time
	logger *slog.Logger
}

// NewHub creates a hub remembering the last historySize events.
func NewHub(historySize int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		ring:   NewRing(historySize),
		subs:   make(map[*subscriber]struct{}),
		now:    time.Now,
		logger: logger,
	}
}

// Publish stamps e with an id and time, records it and delivers it to every
// subscriber. Subscribers that are not keeping up lose the event.
func (h *Hub) Publish(e domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	e.ID = h.nextID
	if e.Time.IsZero() {
		e.Time = h.now().UTC()
	}
	h.ring.Add(e)

	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
			if sub.dropped == 1 || sub.dropped%100 == 0 {
				h.logger.Warn("Event subscriber lagging, dropping events", "dropped", sub.dropped)
			}
		}
	}
}

// Subscribe registers a new subscriber. It returns the history at the moment
// of subscription, a channel of later events, and a cancel func that must be
// called to release the subscription. No event is both replayed and delivered.
func (h *Hub) Subscribe(buffer int) ([]domain.Event, <-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &subscriber{ch: make(chan domain.Event, buffer)}

	h.mu.Lock()
	replay := h.ring.Snapshot()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
		})
	}
	return replay, sub.ch, cancel
}

// Recent returns the buffered history oldest first.
func (h *Hub) Recent() []domain.Event {
	return h.ring.Snapshot()
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
