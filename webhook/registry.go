// Package webhook delivers copies of incoming events to registered HTTP
// callbacks, filtered per registration by event type.
package webhook

import (
	"sync"

	"github.com/google/uuid"
)

// Registration is a callback URL with an optional event-type filter. An
// empty Events list means the hook receives everything.
type Registration struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// Matches reports whether an event with the given type label is delivered
// to this registration. Unclassified events (empty label) only match
// unfiltered hooks.
func (r Registration) Matches(eventType string) bool {
	if len(r.Events) == 0 {
		return true
	}
	if eventType == "" {
		return false
	}
	for _, e := range r.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Registry is the shared set of registrations. Mutation is serialized;
// reads run concurrently with each other.
type Registry struct {
	mu    sync.RWMutex
	hooks []Registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a hook and returns it with a freshly generated id.
func (r *Registry) Register(url string, eventTypes []string) Registration {
	reg := Registration{
		ID:     uuid.NewString(),
		URL:    url,
		Events: eventTypes,
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, reg)
	r.mu.Unlock()
	return reg
}

// List returns a snapshot of all current registrations.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Registration(nil), r.hooks...)
}

// Deregister removes the registration with the given id, reporting whether
// it existed.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.hooks {
		if h.ID == id {
			r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
			return true
		}
	}
	return false
}
