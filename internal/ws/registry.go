package ws

import (
	"sort"
	"sync"

	"crossarb/internal/exchange"
)

// Channel identifies one logical stream. Private channels (orders, balances,
// positions) carry a zero Symbol.
type Channel struct {
	Kind   exchange.ChannelKind
	Symbol exchange.Symbol
}

// Key returns the registry key for the channel.
func (c Channel) Key() string {
	if c.Symbol.IsZero() {
		return string(c.Kind)
	}
	return string(c.Kind) + ":" + c.Symbol.String()
}

// Handler consumes one dispatched event. Handlers for the same channel are
// invoked in bind order on the session's dispatch goroutine.
type Handler func(*Event)

// Registry tracks the desired subscription set and the handlers bound to each
// channel. The session replays the full set after every reconnect.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	handlers map[string][]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		handlers: make(map[string][]Handler),
	}
}

// Add records channels in the subscription set and returns only the ones not
// already present.
func (r *Registry) Add(channels ...Channel) []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []Channel
	for _, c := range channels {
		k := c.Key()
		if _, ok := r.channels[k]; ok {
			continue
		}
		r.channels[k] = c
		added = append(added, c)
	}
	return added
}

// Remove drops channels from the subscription set and returns only the ones
// that were present. Bound handlers stay registered.
func (r *Registry) Remove(channels ...Channel) []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Channel
	for _, c := range channels {
		k := c.Key()
		if _, ok := r.channels[k]; !ok {
			continue
		}
		delete(r.channels, k)
		removed = append(removed, c)
	}
	return removed
}

// Channels returns the current subscription set in stable key order.
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.channels))
	for k := range r.channels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Channel, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.channels[k])
	}
	return out
}

// Contains reports whether the channel is in the subscription set.
func (r *Registry) Contains(c Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[c.Key()]
	return ok
}

// Bind registers a handler for the channel. Multiple handlers per channel are
// supported and invoked in bind order.
func (r *Registry) Bind(c Channel, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := c.Key()
	r.handlers[k] = append(r.handlers[k], h)
}

// Dispatch routes one event to its bound handlers. Events on channels without
// handlers are dropped silently.
func (r *Registry) Dispatch(ev *Event) {
	r.mu.RLock()
	hs := r.handlers[ev.Channel]
	r.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}
