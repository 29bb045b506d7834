package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/fsm"
	"github.com/Fabulani/shopfloor-simulation/internal/job"
	"github.com/Fabulani/shopfloor-simulation/internal/motion"
)

// State names.
const (
	NameInitialize = "Initialize"
	NameIdle       = "Idle"
	NameBeginJob   = "BeginJob"
	NameFinishJob  = "FinishJob"
	NameReset      = "Reset"
	NameOnHold     = "OnHold"
	NameShutdown   = "Shutdown"
)

// graph holds one instance of every state of a scenario.
type graph struct {
	initialize, idle, beginJob, finishJob, reset, onHold, shutdown State

	ops         []State
	transitions []State // transitions[i] runs before ops[i]; nil when absent
}

func newGraph(steps []Choreography) *graph {
	g := &graph{
		initialize:  initializeState{},
		idle:        idleState{},
		beginJob:    beginJobState{},
		finishJob:   finishJobState{},
		reset:       resetState{},
		onHold:      onHoldState{},
		shutdown:    shutdownState{},
		ops:         make([]State, len(steps)),
		transitions: make([]State, len(steps)),
	}
	for i, step := range steps {
		g.ops[i] = &opState{index: i}
		if step.Transition != nil && i > 0 {
			g.transitions[i] = &transitionState{index: i}
		}
	}
	return g
}

// enterStep returns the first state of step i: its transition if any,
// otherwise the operation itself.
func (g *graph) enterStep(i int) State {
	if i >= len(g.ops) {
		return g.finishJob
	}
	if t := g.transitions[i]; t != nil {
		return t
	}
	return g.ops[i]
}

// proceed applies the mode check and the hold check before leaving current
// for next.
func (c *Context) proceed(current, next State) State {
	if c.ModeMismatch() {
		return c.graph.shutdown
	}
	if c.Current != nil && c.Current.Status() == job.StatusOnHold {
		c.Prev = current
		return c.graph.onHold
	}
	return next
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// =============================================================================
// Lifecycle States
// =============================================================================

type initializeState struct{}

func (initializeState) Name() string { return NameInitialize }

func (initializeState) Run(ctx context.Context, c *Context) error {
	c.Inbox.SetScenario(c.Layout.Name)
	if stale := c.Inbox.DrainStatuses(); len(stale) > 0 {
		c.logger.Debug("discarded stale status updates", "count", len(stale))
	}

	entities := append([]entity.Entity{c.Manager}, c.Layout.Entities()...)
	c.Registry.AddPublishing(entities...)
	c.Registry.AddResettable(c.Layout.Resettable()...)
	c.initializeTopics(entities...)

	c.startBackground()

	for _, jc := range c.Layout.InitialJobs {
		if _, err := c.CreateJob(jc.Name, jc.Steps...); err != nil {
			return err
		}
	}

	sleep(ctx, c.Timing.StateSleep)
	return nil
}

func (initializeState) Next(c *Context) (State, error) {
	if c.ModeMismatch() {
		return c.graph.shutdown, nil
	}
	return c.graph.idle, nil
}

type shutdownState struct{}

func (shutdownState) Name() string   { return NameShutdown }
func (shutdownState) Terminal() bool { return true }

func (shutdownState) Run(_ context.Context, c *Context) error {
	c.Run.Clear()
	if c.syncDone != nil {
		<-c.syncDone
	}
	c.waitMoves()

	for _, e := range c.Registry.Publishing() {
		c.Mirror.Unregister(e)
	}
	c.logger.Info("scenario shut down", "scenario", c.Layout.Name,
		"selected_flexibility", c.Manager.SelectedFlexibility())
	return nil
}

func (shutdownState) Next(c *Context) (State, error) {
	return c.graph.initialize, nil
}

// =============================================================================
// Job States
// =============================================================================

type idleState struct{}

func (idleState) Name() string { return NameIdle }

func (idleState) Run(ctx context.Context, c *Context) error {
	c.updateCurrentJob()
	sleep(ctx, c.Timing.StateSleep)
	return nil
}

func (idleState) Next(c *Context) (State, error) {
	if c.ModeMismatch() {
		return c.graph.shutdown, nil
	}
	if c.Current == nil {
		return c.graph.idle, nil
	}
	return c.graph.beginJob, nil
}

type beginJobState struct{}

func (beginJobState) Name() string { return NameBeginJob }

func (beginJobState) Run(ctx context.Context, c *Context) error {
	if c.Current == nil {
		return ErrNoCurrentJob
	}
	c.logger.Info("job started", "job", c.Current.ID(), "name", c.Current.Header().Name)
	sleep(ctx, c.Timing.StateSleep)
	return nil
}

func (s beginJobState) Next(c *Context) (State, error) {
	return c.proceed(s, c.graph.enterStep(0)), nil
}

type opState struct {
	index int
}

func (s *opState) Name() string { return fmt.Sprintf("Op%d", s.index) }

func (s *opState) Run(ctx context.Context, c *Context) error {
	j := c.Current
	if j == nil {
		return ErrNoCurrentJob
	}
	step := c.Layout.Steps[s.index]

	for _, a := range step.Assign {
		a.Robot.SetCurrentStation(a.Station)
	}
	for _, r := range step.Busy {
		r.SetStatus(entity.StatusBusy)
	}

	if err := j.BeginProcessStep(s.index); err != nil {
		return fmt.Errorf("job %s: %w", j.ID(), err)
	}
	sleep(ctx, c.Timing.StateSleep)
	if err := j.FinishProcessStep(s.index); err != nil {
		return fmt.Errorf("job %s: %w", j.ID(), err)
	}

	for _, r := range step.Release {
		if err := r.Reset(ctx); err != nil && !interrupted(err) {
			return err
		}
	}
	return nil
}

func (s *opState) Next(c *Context) (State, error) {
	return c.proceed(s, c.graph.enterStep(s.index+1)), nil
}

type transitionState struct {
	index int
}

func (s *transitionState) Name() string { return fmt.Sprintf("Transition%d", s.index) }

func (s *transitionState) Run(_ context.Context, c *Context) error {
	t := c.Layout.Steps[s.index].Transition

	var join motion.JoinSet
	for _, mv := range t.Moves {
		task := c.startMove(c.Run.Context(), mv.Robot, mv.Target)
		if t.JoinOn[mv.Robot] {
			join.Add(task)
		}
	}
	if err := join.Wait(); err != nil && !interrupted(err) {
		return err
	}
	return nil
}

func (s *transitionState) Next(c *Context) (State, error) {
	return c.proceed(s, c.graph.ops[s.index]), nil
}

type finishJobState struct{}

func (finishJobState) Name() string { return NameFinishJob }

func (finishJobState) Run(ctx context.Context, c *Context) error {
	j := c.Current
	if j == nil {
		return ErrNoCurrentJob
	}
	c.retireJob(j)
	c.Current = nil
	c.Prev = nil
	c.logger.Info("job finished", "job", j.ID(), "queued", c.Queue.Len())

	sleep(ctx, c.Timing.StateSleep)
	return nil
}

func (finishJobState) Next(c *Context) (State, error) {
	if c.ModeMismatch() {
		return c.graph.shutdown, nil
	}
	return c.graph.reset, nil
}

type resetState struct{}

func (resetState) Name() string { return NameReset }

func (resetState) Run(ctx context.Context, c *Context) error {
	c.waitMoves()
	for _, r := range c.Registry.Resettable() {
		if err := r.Reset(ctx); err != nil {
			if interrupted(err) {
				return nil
			}
			return err
		}
	}
	for _, a := range c.Layout.ResetAssignments {
		a.Robot.SetCurrentStation(a.Station)
	}

	if _, err := c.CreateJob(c.Layout.ResetJob.Name, c.Layout.ResetJob.Steps...); err != nil {
		return err
	}
	sleep(ctx, c.Timing.ResetSleep)
	return nil
}

func (resetState) Next(c *Context) (State, error) {
	if c.ModeMismatch() {
		return c.graph.shutdown, nil
	}
	return c.graph.idle, nil
}

// onHoldState waits until the current Job is back IN_PROGRESS, then resumes
// the interrupted state. Any status other than IN_PROGRESS keeps it waiting.
type onHoldState struct{}

func (onHoldState) Name() string { return NameOnHold }

func (onHoldState) Run(ctx context.Context, c *Context) error {
	sleep(ctx, c.Timing.StateSleep)
	return nil
}

func (onHoldState) Next(c *Context) (State, error) {
	if c.ModeMismatch() {
		return c.graph.shutdown, nil
	}
	if c.Current == nil || c.Current.Status() != job.StatusInProgress {
		return c.graph.onHold, nil
	}
	prev := c.Prev
	c.Prev = nil
	if prev == nil {
		return nil, fmt.Errorf("%w: no interrupted state to resume", fsm.ErrUnimplementedState)
	}
	return prev, nil
}
