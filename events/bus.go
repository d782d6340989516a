package events

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives dispatched events.
type Handler func(Event)

// Subscription identifies a registered listener.
type Subscription struct {
	ID   uuid.UUID
	Type Type
}

type listener struct {
	id      uuid.UUID
	handler Handler
	once    bool
}

// Bus is a synchronous event dispatcher, safe for concurrent use. Handlers
// run on the dispatching goroutine in registration order.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Type][]listener
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[Type][]listener)}
}

// AddListener registers handler for events of type t. A once listener is
// removed before its first invocation.
func (b *Bus) AddListener(t Type, handler Handler, once bool) Subscription {
	sub := Subscription{ID: uuid.New(), Type: t}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[t] = append(b.listeners[t], listener{id: sub.ID, handler: handler, once: once})
	return sub
}

// On registers a handler typed by the payload it accepts.
func On[E Event](b *Bus, handler func(E), once bool) Subscription {
	var zero E
	return b.AddListener(zero.Type(), func(e Event) {
		if typed, ok := e.(E); ok {
			handler(typed)
		}
	}, once)
}

// RemoveListener unregisters a subscription and reports whether it was found.
func (b *Bus) RemoveListener(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(sub.Type, sub.ID)
}

func (b *Bus) removeLocked(t Type, id uuid.UUID) bool {
	ls := b.listeners[t]
	for i, l := range ls {
		if l.id == id {
			b.listeners[t] = append(ls[:i:i], ls[i+1:]...)
			if len(b.listeners[t]) == 0 {
				delete(b.listeners, t)
			}
			return true
		}
	}
	return false
}

// RemoveAllListeners unregisters every listener of the given types, or of
// every type when none are given.
func (b *Bus) RemoveAllListeners(types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.listeners = make(map[Type][]listener)
		return
	}
	for _, t := range types {
		delete(b.listeners, t)
	}
}

// ListenerCount returns the number of listeners for t.
func (b *Bus) ListenerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}

// Dispatch delivers e to the listeners of its type.
func (b *Bus) Dispatch(e Event) {
	t := e.Type()

	b.mu.Lock()
	ls := append([]listener(nil), b.listeners[t]...)
	for _, l := range ls {
		if l.once {
			b.removeLocked(t, l.id)
		}
	}
	b.mu.Unlock()

	for _, l := range ls {
		l.handler(e)
	}
}
