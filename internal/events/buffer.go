package events

import "sync"

// RingBuffer keeps the newest events in memory for /events, stream replay
// and tests. Once full, each Add overwrites the oldest event.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	count  int
}

// NewRingBuffer creates a buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{events: make([]Event, size)}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.events[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.events)
	if rb.count < len(rb.events) {
		rb.count++
	}
}

// Last returns up to n of the newest events, oldest first. n <= 0 returns
// everything held.
func (rb *RingBuffer) Last(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	size := len(rb.events)
	start := (rb.next - n + size) % size
	out := make([]Event, n)
	for i := range out {
		out[i] = rb.events[(start+i)%size]
	}
	return out
}

// Snapshot returns every event held, oldest first.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Last(0)
}

// Len returns the number of events held.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.events = make([]Event, len(rb.events))
	rb.next = 0
	rb.count = 0
}
