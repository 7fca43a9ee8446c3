package identity

import (
	"context"
	"sync"
)

// Hub tracks the auth state of a single client and fans transitions out to
// its subscribers.
//
// Listeners run synchronously, one transition at a time, in the order the
// transitions were set. A listener must not call Set on the same hub.
type Hub struct {
	dispatch sync.Mutex

	mu        sync.Mutex
	current   *Identity
	resolved  bool
	nextID    int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

func NewHub() *Hub {
	return &Hub{}
}

// Set records the current identity. The first call always emits (the
// unresolved to resolved transition); later calls emit only when the signed-in
// user actually changes. It reports whether listeners were notified.
func (h *Hub) Set(ctx context.Context, id *Identity) bool {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()

	h.mu.Lock()
	if h.resolved && Same(h.current, id) {
		h.mu.Unlock()
		return false
	}
	if !id.SignedIn() {
		id = nil
	}
	h.current = id.Clone()
	h.resolved = true
	subs := append([]subscription(nil), h.listeners...)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ctx, id.Clone())
	}
	return true
}

// Current returns the last identity set and whether one was ever set.
func (h *Hub) Current() (*Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Clone(), h.resolved
}

// Subscribe registers fn. If the hub is already resolved, fn is called with
// the current identity before Subscribe returns.
func (h *Hub) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	h.dispatch.Lock()
	defer h.dispatch.Unlock()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, subscription{id: id, fn: fn})
	current, resolved := h.current.Clone(), h.resolved
	h.mu.Unlock()

	if resolved {
		fn(context.Background(), current)
	}

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.listeners {
		if sub.id == id {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}
