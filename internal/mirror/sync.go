package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

// Source provides the entities to synchronize.
type Source interface {
	// Publishing returns a snapshot of the publishing list. The caller may
	// iterate it while the list changes.
	Publishing() []entity.Entity
}

// Run synchronizes every entity of src once per cadence until ctx is done.
//
// Publish failures are logged and retried on the next sweep. Entities that
// were removed mid-sweep are skipped.
func (m *Mirror) Run(ctx context.Context, src Source, cadence time.Duration) error {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		m.Sweep(ctx, src)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep synchronizes every entity of src once.
func (m *Mirror) Sweep(ctx context.Context, src Source) {
	m.mu.Lock()
	logger := m.logger
	m.mu.Unlock()

	for _, e := range src.Publishing() {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.SendPayload(e); err != nil {
			if errors.Is(err, ErrNotInitialized) {
				continue
			}
			logger.Warn("synchronization failed, retrying next cycle", "entity", key(e), "error", err)
		}
	}
}
