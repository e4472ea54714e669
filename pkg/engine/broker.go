package engine

import (
	"sync"

	"github.com/aretw0/pedigree/pkg/core"
)

// DefaultEventBuffer is the channel capacity of a subscription.
const DefaultEventBuffer = 100

// Broker fans engine events out to observers and channel subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu        sync.RWMutex
	observers []core.Observer
	subs      map[int]chan core.Event
	next      int
	dropped   int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan core.Event)}
}

// Observe registers a synchronous observer.
func (b *Broker) Observe(o core.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Subscribe returns a buffered event channel and a function that closes it.
func (b *Broker) Subscribe(buffer int) (<-chan core.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	ch := make(chan core.Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every observer and subscriber.
func (b *Broker) Publish(e core.Event) {
	b.mu.RLock()
	observers := b.observers
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()

	if dropped > 0 {
		b.mu.Lock()
		b.dropped += dropped
		b.mu.Unlock()
	}

	for _, o := range observers {
		o.Notify(e)
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broker) Dropped() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
