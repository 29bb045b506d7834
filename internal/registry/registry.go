// Package registry tracks the entities of a running scenario: the ones
// mirrored to the viewer, the ones restored on reset, and the queue of Jobs.
//
// All collections are safe for concurrent use. Readers receive copies, so
// the synchronization task can iterate while the scenario loop adds and
// removes entries.
package registry

import (
	"sync"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

// Registry holds the publishing and resettable entity lists.
type Registry struct {
	mu         sync.RWMutex
	publishing []entity.Entity
	resettable []entity.Resettable
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// AddPublishing appends entities to the publishing list.
func (r *Registry) AddPublishing(entities ...entity.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishing = append(r.publishing, entities...)
}

// RemovePublishing drops entities from the publishing list by identity.
// It returns the number of entries removed.
func (r *Registry) RemovePublishing(entities ...entity.Entity) int {
	drop := make(map[entity.Entity]bool, len(entities))
	for _, e := range entities {
		drop[e] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.publishing[:0]
	for _, e := range r.publishing {
		if !drop[e] {
			kept = append(kept, e)
		}
	}
	removed := len(r.publishing) - len(kept)
	clear(r.publishing[len(kept):])
	r.publishing = kept
	return removed
}

// Publishing returns a copy of the publishing list.
func (r *Registry) Publishing() []entity.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.Entity, len(r.publishing))
	copy(out, r.publishing)
	return out
}

// IsPublishing reports whether e is in the publishing list.
func (r *Registry) IsPublishing(e entity.Entity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.publishing {
		if p == e {
			return true
		}
	}
	return false
}

// AddResettable appends entities restored by a shopfloor reset.
func (r *Registry) AddResettable(entities ...entity.Resettable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resettable = append(r.resettable, entities...)
}

// Resettable returns a copy of the resettable list.
func (r *Registry) Resettable() []entity.Resettable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.Resettable, len(r.resettable))
	copy(out, r.resettable)
	return out
}

// Find returns the first publishing entity with the given id in any namespace.
func (r *Registry) Find(id string) (entity.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.publishing {
		if _, eid := e.Identify(); eid == id {
			return e, true
		}
	}
	return nil, false
}
