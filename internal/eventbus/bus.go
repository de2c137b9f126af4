// Package eventbus is an in-memory fanout of small lifecycle events.
//
// Publish never blocks; a subscriber whose buffer is full misses the event.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight signal. Data should be small and JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}

// MemBus is the default Bus. It owns no goroutines.
type MemBus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     uint64
	dropped atomic.Uint64
}

func New() *MemBus {
	return &MemBus{subs: map[uint64]chan Event{}}
}

func (b *MemBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends happen under the read lock so unsubscribe cannot close a
	// channel mid-send; all sends are non-blocking.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *MemBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Dropped counts events a full subscriber missed.
func (b *MemBus) Dropped() uint64 { return b.dropped.Load() }
