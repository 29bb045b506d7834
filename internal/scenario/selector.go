package scenario

import (
	"context"
	"time"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

const defaultPollInterval = 500 * time.Millisecond

// Selector runs the scenario matching the manager's selected flexibility,
// one after another, for as long as the manager is enabled.
type Selector struct {
	deps      Deps
	scenarios *config.ScenarioFile
	poll      time.Duration
}

// NewSelector creates a selector over the scenarios of file.
func NewSelector(deps Deps, file *config.ScenarioFile) *Selector {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Selector{deps: deps, scenarios: file, poll: defaultPollInterval}
}

// SetPollInterval sets how often an unknown flexibility is re-checked.
func (s *Selector) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.poll = d
	}
}

// Run blocks until ctx is done, the manager is disabled, or a scenario
// fails. A selected flexibility with no scenario is waited out.
func (s *Selector) Run(ctx context.Context) error {
	logger := s.deps.Logger
	waiting, warned := 0, false

	for s.deps.Manager.Enabled() {
		if ctx.Err() != nil {
			return nil
		}

		selected := s.deps.Manager.SelectedFlexibility()
		sc, ok := s.scenarios.ByFlexibility(selected)
		if !ok {
			if !warned || waiting != selected {
				logger.Warn("no scenario for selected flexibility, waiting", "flexibility", selected)
				waiting, warned = selected, true
			}
			sleep(ctx, s.poll)
			continue
		}
		warned = false

		scen, err := New(sc, s.deps)
		if err != nil {
			return err
		}
		logger.Info("starting scenario", "scenario", scen.Name(), "flexibility", scen.Flexibility())
		if err := scen.Run(ctx); err != nil {
			return err
		}
	}

	logger.Info("scenario manager disabled")
	return nil
}

// Names returns the scenario names of file in order.
func Names(file *config.ScenarioFile) []string {
	out := make([]string, 0, len(file.Scenarios))
	for _, sc := range file.Scenarios {
		out = append(out, sc.Name)
	}
	return out
}
