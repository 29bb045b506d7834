package scenario

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/fsm"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/metrics"
	"github.com/Fabulani/shopfloor-simulation/internal/mirror"
	"github.com/Fabulani/shopfloor-simulation/internal/motion"
	"github.com/Fabulani/shopfloor-simulation/internal/registry"
)

// Deps are the collaborators shared by every scenario instance.
type Deps struct {
	Channel channel.Channel
	Manager *Manager
	Inbox   *Inbox
	Timing  Timing

	// RootTopic prefixes every entity topic.
	RootTopic string

	// TooltipResponseTopic receives tooltip responses. Empty disables them.
	TooltipResponseTopic string

	// Telemetry is optional.
	Telemetry Telemetry

	Logger Logger
}

// TimingFromConfig converts the simulation settings to a Timing.
func TimingFromConfig(cfg config.SimulationConfig) Timing {
	return Timing{
		StateSleep:   cfg.StateSleep(),
		ResetSleep:   cfg.ResetSleep(),
		SyncInterval: cfg.SyncInterval(),
		Motion: motion.Options{
			Step:     cfg.MovementStep,
			Interval: cfg.MovementSleep(),
		},
	}
}

// Scenario is one runnable variant of the shopfloor.
type Scenario struct {
	cfg  config.ScenarioConfig
	deps Deps
}

// New validates that sc can be instantiated.
func New(sc config.ScenarioConfig, deps Deps) (*Scenario, error) {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if _, err := BuildLayout(sc, deps.Timing.Motion); err != nil {
		return nil, err
	}
	return &Scenario{cfg: sc, deps: deps}, nil
}

// Name returns the scenario name.
func (s *Scenario) Name() string {
	return s.cfg.Name
}

// Flexibility returns the scenario variant id.
func (s *Scenario) Flexibility() int {
	return s.cfg.Flexibility
}

// Run initializes a fresh shopfloor and drives it until Shutdown, ctx is
// done, or a state fails. The synchronization task and the tooltip consumer
// run alongside the state machine and stop with it.
func (s *Scenario) Run(ctx context.Context) error {
	layout, err := BuildLayout(s.cfg, s.deps.Timing.Motion)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	c := newContext(gctx, layout, s.deps)
	c.group = g

	logger := s.deps.Logger
	m, err := fsm.New(c.Run.Context(), State(c.graph.initialize), c,
		fsm.WithLogger[*Context](logger),
		fsm.WithBeforeNext(func(c *Context) { c.UpdateJobs() }),
		fsm.WithOnEnter[*Context](s.onEnter),
	)
	if err != nil {
		c.Run.Clear()
		_ = g.Wait() //nolint:errcheck // the initialize error is reported instead
		return fmt.Errorf("scenario %s: %w", s.cfg.Name, err)
	}

	g.Go(func() error {
		defer c.Run.Clear()
		return m.RunAll(c.Run.Context())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("scenario %s: %w", s.cfg.Name, err)
	}
	return nil
}

func (s *Scenario) onEnter(state string) {
	metrics.RecordStateEntry(s.cfg.Name, state)
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.WriteStateEntry(s.cfg.Name, state)
	}
}

// newContext creates the context of one scenario run. The run flag is
// cleared when parent ends.
func newContext(parent context.Context, layout *Layout, deps Deps) *Context {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	mir := mirror.New(deps.Channel, deps.RootTopic)
	mir.SetLogger(logger)
	mir.SetEchoes(deps.Inbox.Echoes())
	if deps.Telemetry != nil {
		mir.AddObserver(telemetryObserver{scenario: layout.Name, out: deps.Telemetry})
	}

	c := &Context{
		Layout:   layout,
		Queue:    registry.NewJobQueue(),
		Registry: registry.New(),
		Mirror:   mir,
		Manager:  deps.Manager,
		Inbox:    deps.Inbox,
		Timing:   deps.Timing,
		Run:      NewRunFlag(parent),
		graph:    newGraph(layout.Steps),
		logger:   logger,
		moves:    make(map[*entity.Robot]*motion.Task),
	}
	if deps.TooltipResponseTopic != "" {
		c.tooltip = &tooltipResponder{
			ch:       deps.Channel,
			topic:    deps.TooltipResponseTopic,
			requests: deps.Inbox.Tooltips(),
			registry: c.Registry,
			mirror:   mir,
			logger:   logger,
		}
	}
	return c
}

// startBackground launches the synchronization task and the tooltip
// consumer on the run group. Shutdown waits for the synchronization task.
func (c *Context) startBackground() {
	if c.group == nil {
		return
	}
	done := make(chan struct{})
	c.syncDone = done
	c.group.Go(func() error {
		defer close(done)
		return c.Mirror.Run(c.Run.Context(), c.Registry, c.Timing.SyncInterval)
	})
	if c.tooltip != nil {
		c.group.Go(func() error {
			return c.tooltip.run(c.Run.Context())
		})
	}
}
