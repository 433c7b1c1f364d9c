// Package live fans document change events out to interested listeners.
package live

import (
	"context"
	"sync"
	"time"
)

// Event announces that a document in a collection was written.
type Event struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
}

// Hub publishes change events and hands out per-collection listeners.
type Hub interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, collection string) (Listener, error)
	Close() error
}

// Listener receives events for one collection until closed.
type Listener interface {
	Events() <-chan Event
	Close() error
}

const listenerBuffer = 64

// MemoryHub is an in-process Hub used when Redis is not configured.
type MemoryHub struct {
	mu        sync.Mutex
	listeners map[string]map[*memoryListener]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{listeners: make(map[string]map[*memoryListener]struct{})}
}

func (h *MemoryHub) Publish(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for l := range h.listeners[event.Collection] {
		select {
		case l.events <- event:
		default:
			// listener is behind; it will re-read state on the next event
		}
	}
	return nil
}

func (h *MemoryHub) Subscribe(_ context.Context, collection string) (Listener, error) {
	l := &memoryListener{
		hub:        h,
		collection: collection,
		events:     make(chan Event, listenerBuffer),
	}
	h.mu.Lock()
	if h.listeners[collection] == nil {
		h.listeners[collection] = make(map[*memoryListener]struct{})
	}
	h.listeners[collection][l] = struct{}{}
	h.mu.Unlock()
	return l, nil
}

func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.listeners {
		for l := range set {
			l.closeLocked()
		}
	}
	h.listeners = make(map[string]map[*memoryListener]struct{})
	return nil
}

// ListenerCount reports active listeners for a collection.
func (h *MemoryHub) ListenerCount(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[collection])
}

type memoryListener struct {
	hub        *MemoryHub
	collection string
	events     chan Event
	closed     bool
}

func (l *memoryListener) Events() <-chan Event {
	return l.events
}

func (l *memoryListener) Close() error {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()
	l.closeLocked()
	return nil
}

func (l *memoryListener) closeLocked() {
	if l.closed {
		return
	}
	l.closed = true
	delete(l.hub.listeners[l.collection], l)
	close(l.events)
}
