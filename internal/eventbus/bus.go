package eventbus

import (
	"log"
	"sync"
)

// Handle identifies a registered subscriber so it can be detached later.
type Handle uint64

// Bus fans a single stream of Events out to any number of subscribers.
// Grounded on the teacher's SSE hub: a register/unregister/broadcast loop
// guarded by a single mutex, with per-subscriber isolation so one bad
// handler can't take down the others or the publisher.
type Bus struct {
	mu        sync.Mutex
	next      Handle
	listeners map[Handle]func(Event)
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{listeners: make(map[Handle]func(Event))}
}

// Subscribe registers handler to receive every event published after this
// call returns. The handler must not block or must self-buffer: Publish
// calls it synchronously on the publisher's goroutine.
func (b *Bus) Subscribe(handler func(Event)) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	h := b.next
	b.listeners[h] = handler
	return h
}

// Unsubscribe detaches a previously registered handler. Unsubscribing an
// unknown or already-detached handle is a no-op.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, h)
}

// Publish delivers e to every current subscriber. A subscriber that panics
// is recovered and logged; the panic never propagates to the publisher or
// to other subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	handlers := make([]func(Event), 0, len(b.listeners))
	for _, h := range b.listeners {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(handler func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("eventbus: subscriber panicked on %s: %v", e.Type, r)
		}
	}()
	handler(e)
}

// Count returns the number of currently registered subscribers.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
