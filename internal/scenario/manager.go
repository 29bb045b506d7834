package scenario

import (
	"sync"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

// Manager is the scenario manager entity. It holds the externally selected
// flexibility and the enable flag, and is published like any other entity.
type Manager struct {
	mu        sync.RWMutex
	header    entity.Header
	selected  int
	enabled   bool
	scenarios []string
}

// NewManager creates an enabled manager with flexibility selected.
func NewManager(id string, selected int, scenarios []string) *Manager {
	return &Manager{
		header: entity.Header{
			ID:          id,
			Name:        "Scenario Manager",
			Namespace:   channel.NamespaceManager,
			Description: "Selects the running shopfloor scenario.",
		},
		selected:  selected,
		enabled:   true,
		scenarios: append([]string(nil), scenarios...),
	}
}

// Identify implements entity.Entity.
func (m *Manager) Identify() (namespace, id string) {
	return m.header.Namespace, m.header.ID
}

// SelectedFlexibility returns the selected scenario variant.
func (m *Manager) SelectedFlexibility() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// SetSelectedFlexibility selects a scenario variant.
func (m *Manager) SetSelectedFlexibility(f int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = f
}

// Enabled reports whether scenarios should keep running.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SetEnabled enables or disables the manager.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Snapshot implements entity.Entity.
func (m *Manager) Snapshot() entity.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s entity.Snapshot
	s.Set("header", m.header.Snapshot())
	s.Set("selected_flexibility", m.selected)
	s.Set("is_enabled", m.enabled)
	s.Set("scenarios", append([]string(nil), m.scenarios...))
	return s
}

// Scenarios returns the names of the known scenario variants.
func (m *Manager) Scenarios() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.scenarios...)
}
