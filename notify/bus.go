// Package notify delivers ledger events to subscribers.
//
// Bus fans events out in-process, Redis forwards them to a Redis pub/sub
// channel and Multi combines publishers. All of them implement
// ledger.Publisher.
package notify

import (
	"context"
	"sync"

	"github.com/warp/microledger/ledger"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Bus is an in-process event fan-out. Slow subscribers lose events rather
// than block the ledger.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan ledger.Event
	nextID  int
	buffer  int
	dropped uint64
	closed  bool
}

// NewBus creates a Bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{subs: make(map[int]chan ledger.Event), buffer: buffer}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan ledger.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ledger.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish implements ledger.Publisher. It never blocks.
func (b *Bus) Publish(_ context.Context, ev ledger.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
}
