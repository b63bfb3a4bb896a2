package storage

import (
	"log/slog"
	"sync"
)

// Hub fans change events out to per-collection subscribers. Stores embed it
// and call Publish after a write has committed, outside of their own locks.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(ChangeEvent)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]func(ChangeEvent))}
}

// Subscribe implements Store.Subscribe.
func (h *Hub) Subscribe(collection string, fn func(ChangeEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string]map[int]func(ChangeEvent))
	}
	h.nextID++
	id := h.nextID
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]func(ChangeEvent))
	}
	h.subs[collection][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[collection], id)
		})
	}
}

// Publish delivers ev synchronously to every subscriber of its collection.
// A panicking subscriber is logged and does not affect the others.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	fns := make([]func(ChangeEvent), 0, len(h.subs[ev.Collection]))
	for _, fn := range h.subs[ev.Collection] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		deliver(fn, ev)
	}
}

// Subscribers returns the number of live subscriptions for collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[collection])
}

func deliver(fn func(ChangeEvent), ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Change subscriber panicked",
				"collection", ev.Collection,
				"kind", ev.Kind,
				"id", ev.Record.ID,
				"panic", r)
		}
	}()
	fn(ev)
}
