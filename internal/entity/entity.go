package entity

import "context"

// Entity is an object whose attributes are mirrored externally.
type Entity interface {
	// Identify returns the topic namespace and id of the entity.
	Identify() (namespace, id string)

	// Snapshot returns the publishable attributes in a stable key order.
	Snapshot() Snapshot
}

// Resettable is an entity that can return to its initial state.
type Resettable interface {
	Entity
	Reset(ctx context.Context) error
}

// Header identifies an entity.
type Header struct {
	ID          string
	Name        string
	Namespace   string
	Description string
}

// Snapshot renders the header as a nested snapshot.
func (h Header) Snapshot() Snapshot {
	var s Snapshot
	s.Set("_id", h.ID)
	s.Set("name", h.Name)
	s.Set("_namespace", h.Namespace)
	s.Set("description", h.Description)
	return s
}

// Key returns "namespace/id".
func (h Header) Key() string {
	return h.Namespace + "/" + h.ID
}

// headerRef renders an optional reference as a header snapshot or nil.
func headerRef(h *Header) any {
	if h == nil {
		return nil
	}
	return h.Snapshot()
}
