package entity

import "sync"

// Station statuses.
const (
	StationOperable = "OPERABLE"
	StationSetup    = "SETUP"
	StationUnknown  = "UNKNOWN"
	StationError    = "ERROR"
)

// Station is a place where robots execute process steps.
type Station struct {
	mu     sync.RWMutex
	header Header
	parent *Header
	status string
}

// NewStation creates an operable station inside parent (which may be nil).
func NewStation(h Header, parent *Header) *Station {
	return &Station{header: h, parent: parent, status: StationOperable}
}

// Identify implements Entity.
func (s *Station) Identify() (namespace, id string) {
	return s.header.Namespace, s.header.ID
}

// Header returns the station's header.
func (s *Station) Header() Header {
	return s.header
}

// Status returns the station status.
func (s *Station) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus changes the station status.
func (s *Station) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Snapshot implements Entity.
func (s *Station) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	snap.Set("header", s.header.Snapshot())
	snap.Set("status", s.status)
	snap.Set("parent", headerRef(s.parent))
	return snap
}

// Zone groups stations, robots, or products. A zone without a parent is
// the root structure of the shopfloor.
type Zone struct {
	mu       sync.RWMutex
	header   Header
	parent   *Header
	children []Header
}

// NewZone creates an empty zone inside parent (which may be nil).
func NewZone(h Header, parent *Header) *Zone {
	return &Zone{header: h, parent: parent}
}

// Identify implements Entity.
func (z *Zone) Identify() (namespace, id string) {
	return z.header.Namespace, z.header.ID
}

// Header returns the zone's header.
func (z *Zone) Header() Header {
	return z.header
}

// Adopt records h as a member of the zone.
func (z *Zone) Adopt(h Header) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.children = append(z.children, h)
}

// Children returns the members of the zone in adoption order.
func (z *Zone) Children() []Header {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := make([]Header, len(z.children))
	copy(out, z.children)
	return out
}

// Snapshot implements Entity.
func (z *Zone) Snapshot() Snapshot {
	z.mu.RLock()
	defer z.mu.RUnlock()

	kind := "zone"
	if z.parent == nil {
		kind = "structure"
	}
	children := make([]Snapshot, len(z.children))
	for i, c := range z.children {
		children[i] = c.Snapshot()
	}

	var s Snapshot
	s.Set("header", z.header.Snapshot())
	s.Set("type", kind)
	s.Set("parent", headerRef(z.parent))
	s.Set("children", children)
	return s
}
