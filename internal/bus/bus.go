package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus is an in-process publish/subscribe event bus. Subscribers register a
// namespace prefix ("message.", "session.", or "" for everything) and
// receive matching events on a buffered channel. Publishing never blocks:
// a subscriber that falls behind loses events rather than stalling the
// publisher.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscriber
	next int
}

type subscriber struct {
	id        int
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{}
}

// Publish sends an event to every subscriber whose namespace is a prefix
// of event.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.namespace) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber buffer full; drop.
		}
	}
}

// PublishKind publishes an event of the given kind with the current time.
func (b *Bus) PublishKind(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe registers for events matching the namespace prefix. bufSize
// controls the channel buffer. The returned function removes the
// subscription; the channel is not closed, so a drained receiver simply
// stops seeing events.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	sub := &subscriber{
		namespace: namespace,
		ch:        make(chan Event, bufSize),
	}

	b.mu.Lock()
	sub.id = b.next
	b.next++
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}
