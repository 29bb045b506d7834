package scenario

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/fsm"
	"github.com/Fabulani/shopfloor-simulation/internal/job"
	"github.com/Fabulani/shopfloor-simulation/internal/metrics"
	"github.com/Fabulani/shopfloor-simulation/internal/mirror"
	"github.com/Fabulani/shopfloor-simulation/internal/motion"
	"github.com/Fabulani/shopfloor-simulation/internal/registry"
)

// State is a state of the scenario machine.
type State = fsm.State[*Context]

// Timing holds the delays of a scenario.
type Timing struct {
	// StateSleep is the simulated work inside states.
	StateSleep time.Duration

	// ResetSleep follows a shopfloor reset.
	ResetSleep time.Duration

	// SyncInterval is the cadence of the synchronization task.
	SyncInterval time.Duration

	// Motion controls robot stepping.
	Motion motion.Options
}

// Context is the state shared by the states of one scenario instance.
// Job state is only mutated from the machine's goroutine.
type Context struct {
	Layout   *Layout
	Queue    *registry.JobQueue
	Registry *registry.Registry
	Mirror   *mirror.Mirror
	Manager  *Manager
	Inbox    *Inbox
	Timing   Timing
	Run      *RunFlag

	// Current is the Job being executed, nil while idle.
	Current *job.Job

	// Prev is the state interrupted by OnHold.
	Prev State

	graph    *graph
	jobCount int
	logger   Logger

	group    *errgroup.Group
	syncDone chan struct{}

	movesMu sync.Mutex
	moves   map[*entity.Robot]*motion.Task

	tooltip *tooltipResponder
}

// Flexibility returns the scenario variant this context runs.
func (c *Context) Flexibility() int {
	return c.Layout.Flexibility
}

// ModeMismatch reports whether this scenario must shut down: another
// flexibility was selected or the manager was disabled.
func (c *Context) ModeMismatch() bool {
	return c.Manager.SelectedFlexibility() != c.Layout.Flexibility || !c.Manager.Enabled()
}

// CreateJob builds a Job from the named templates, queues it, and
// registers the Job, its steps, and their operations for publishing.
func (c *Context) CreateJob(name string, stepIDs ...string) (*job.Job, error) {
	if len(stepIDs) == 0 {
		return nil, fmt.Errorf("%w: job %q", ErrNoProcessSteps, name)
	}
	c.jobCount++
	j, err := c.Layout.Catalog.Build(c.jobCount, name, stepIDs...)
	if err != nil {
		c.jobCount--
		return nil, fmt.Errorf("creating job %q: %w", name, err)
	}

	c.Queue.Push(j)
	entities := j.Entities()
	c.Registry.AddPublishing(entities...)
	c.initializeTopics(entities...)

	metrics.RecordQueuedJobs(c.Layout.Name, c.Queue.Len())
	c.logger.Info("job created", "job", j.ID(), "name", j.Header().Name, "steps", len(stepIDs))
	return j, nil
}

// UpdateJobs applies the queued status updates to the Jobs in the queue.
// Updates for unknown Jobs are ignored.
func (c *Context) UpdateJobs() {
	for _, u := range c.Inbox.DrainStatuses() {
		j, ok := c.Queue.Get(u.JobID)
		if !ok {
			c.logger.Debug("status update for unknown job ignored", "job", u.JobID, "status", u.Status)
			continue
		}
		if j.Status() == u.Status {
			continue
		}
		j.SetStatus(u.Status)
		c.logger.Info("job status updated", "job", u.JobID, "status", u.Status)
	}
}

// updateCurrentJob selects the first IN_PROGRESS Job of the queue.
func (c *Context) updateCurrentJob() {
	c.Current = nil
	if j, ok := c.Queue.FirstWithStatus(job.StatusInProgress); ok {
		c.Current = j
	}
}

// retireJob marks j DONE, publishes its final snapshot, and removes it from
// the queue and the publishing list.
func (c *Context) retireJob(j *job.Job) {
	j.SetStatus(job.StatusDone)
	c.Queue.Remove(j)

	entities := j.Entities()
	for _, e := range entities {
		if _, err := c.Mirror.SendPayload(e); err != nil && !errors.Is(err, mirror.ErrNotInitialized) {
			c.logger.Warn("final publish failed", "job", j.ID(), "error", err)
		}
	}
	c.Registry.RemovePublishing(entities...)
	for _, e := range entities {
		c.Mirror.Unregister(e)
	}
	metrics.RecordQueuedJobs(c.Layout.Name, c.Queue.Len())
}

func (c *Context) initializeTopics(entities ...entity.Entity) {
	for _, e := range entities {
		if err := c.Mirror.InitializeTopic(e); err != nil {
			c.logger.Warn("topic initialization failed, retrying on next sweep", "error", err)
		}
	}
}

// startMove moves r to target on its own goroutine. A robot still moving
// from an earlier transition finishes that move first.
func (c *Context) startMove(ctx context.Context, r *entity.Robot, target motion.Vec3) *motion.Task {
	c.movesMu.Lock()
	defer c.movesMu.Unlock()

	task := r.StartMove(ctx, target, c.moves[r])
	c.moves[r] = task
	return task
}

// waitMoves waits for every robot move still running. Failures other than
// cancellation are logged.
func (c *Context) waitMoves() {
	c.movesMu.Lock()
	moves := maps.Clone(c.moves)
	c.movesMu.Unlock()

	for r, task := range moves {
		if err := task.Wait(); err != nil && !interrupted(err) {
			c.logger.Warn("robot move failed", "robot", r.Header().ID, "error", err)
		}
	}
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
