package events

import (
	"sync"

	"github.com/ashureev/mention-launcher/internal/domain"
)

// Ring is a fixed-size circular buffer of events.
// Once full, each write overwrites the oldest event.
type Ring struct {
	buf  []domain.Event
	size int
	head int // next write position
	full bool
	mu   sync.RWMutex
}

// NewRing creates a ring holding at most size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 200
	}
	return &Ring{
		buf:  make([]domain.Event, size),
		size: size,
	}
}

// Add appends e, evicting the oldest event when the ring is full.
func (r *Ring) Add(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = e
	r.head = (r.head + 1) % r.size
	if r.head == 0 {
		r.full = true
	}
}

// Snapshot returns the buffered events oldest first.
func (r *Ring) Snapshot() []domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]domain.Event, r.head)
		copy(out, r.buf[:r.head])
		return out
	}

	// Wrap-around: head -> end + start -> head
	out := make([]domain.Event, r.size)
	n := copy(out, r.buf[r.head:])
	copy(out[n:], r.buf[:r.head])
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.full {
		return r.size
	}
	return r.head
}

// Capacity returns the maximum number of events the ring holds.
func (r *Ring) Capacity() int {
	return r.size
}
