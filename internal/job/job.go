package job

import (
	"fmt"
	"sync"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

// Namespaces used by the job model.
const (
	NamespaceJobs         = "jobs"
	NamespaceProcessSteps = "process_steps"
	NamespaceOperations   = "operations"
)

// Operation is the leaf unit of work. Its progress is 0 or 100.
type Operation struct {
	mu       *sync.RWMutex
	header   entity.Header
	status   Status
	progress int
}

// NewOperation creates an operation in status CREATED.
func NewOperation(h entity.Header) *Operation {
	return &Operation{mu: &sync.RWMutex{}, header: h, status: StatusCreated}
}

// Identify implements entity.Entity.
func (o *Operation) Identify() (namespace, id string) {
	return o.header.Namespace, o.header.ID
}

// Header returns the operation's header.
func (o *Operation) Header() entity.Header {
	return o.header
}

// Status returns the operation status.
func (o *Operation) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Progress returns the operation progress.
func (o *Operation) Progress() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

// Snapshot implements entity.Entity.
func (o *Operation) Snapshot() entity.Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

func (o *Operation) snapshotLocked() entity.Snapshot {
	var s entity.Snapshot
	s.Set("header", o.header.Snapshot())
	s.Set("status", string(o.status))
	s.Set("progress", o.progress)
	return s
}

func (o *Operation) clone(mu *sync.RWMutex) *Operation {
	return &Operation{mu: mu, header: o.header, status: o.status, progress: o.progress}
}

// ProcessStep is an ordered group of operations executed at one station.
// Prev and Next name the neighbouring steps of the chain by id.
type ProcessStep struct {
	mu         *sync.RWMutex
	header     entity.Header
	status     Status
	operations []*Operation
	station    entity.Header
	prev, next string
	progress   int
}

// StepSpec describes a process step to construct.
type StepSpec struct {
	Header     entity.Header
	Operations []*Operation
	Station    entity.Header
	Prev, Next string
}

// NewProcessStep creates a process step in status CREATED.
func NewProcessStep(spec StepSpec) *ProcessStep {
	mu := &sync.RWMutex{}
	ops := make([]*Operation, len(spec.Operations))
	for i, op := range spec.Operations {
		ops[i] = op.clone(mu)
	}
	return &ProcessStep{
		mu:         mu,
		header:     spec.Header,
		status:     StatusCreated,
		operations: ops,
		station:    spec.Station,
		prev:       spec.Prev,
		next:       spec.Next,
	}
}

// Clone returns a deep copy of the step and its operations.
func (p *ProcessStep) Clone() *ProcessStep {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mu := &sync.RWMutex{}
	ops := make([]*Operation, len(p.operations))
	for i, op := range p.operations {
		ops[i] = op.clone(mu)
	}
	return &ProcessStep{
		mu:         mu,
		header:     p.header,
		status:     p.status,
		operations: ops,
		station:    p.station,
		prev:       p.prev,
		next:       p.next,
		progress:   p.progress,
	}
}

// bind moves the step and its operations under mu.
func (p *ProcessStep) bind(mu *sync.RWMutex) {
	p.mu = mu
	for _, op := range p.operations {
		op.mu = mu
	}
}

// Identify implements entity.Entity.
func (p *ProcessStep) Identify() (namespace, id string) {
	return p.header.Namespace, p.header.ID
}

// Header returns the step's header.
func (p *ProcessStep) Header() entity.Header {
	return p.header
}

// Station returns the station the step runs at.
func (p *ProcessStep) Station() entity.Header {
	return p.station
}

// Operations returns the step's operations in order.
func (p *ProcessStep) Operations() []*Operation {
	out := make([]*Operation, len(p.operations))
	copy(out, p.operations)
	return out
}

// Prev returns the id of the preceding step, or "" for the first step.
func (p *ProcessStep) Prev() string {
	return p.prev
}

// Next returns the id of the following step, or "" for the last step.
func (p *ProcessStep) Next() string {
	return p.next
}

// Status returns the step status.
func (p *ProcessStep) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Progress returns the step progress.
func (p *ProcessStep) Progress() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

// UpdateProgress recomputes progress from the operations.
func (p *ProcessStep) UpdateProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateProgressLocked()
}

func (p *ProcessStep) updateProgressLocked() {
	done := 0
	for _, op := range p.operations {
		if op.status == StatusDone {
			done++
		}
	}
	p.progress = progress(done, len(p.operations))
}

// Snapshot implements entity.Entity.
func (p *ProcessStep) Snapshot() entity.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *ProcessStep) snapshotLocked() entity.Snapshot {
	ops := make([]entity.Snapshot, len(p.operations))
	for i, op := range p.operations {
		ops[i] = op.snapshotLocked()
	}

	var s entity.Snapshot
	s.Set("header", p.header.Snapshot())
	s.Set("status", string(p.status))
	s.Set("operations", ops)
	s.Set("progress", p.progress)
	s.Set("station", p.station.Snapshot())
	s.Set("prev_process_step", stepRef(p.prev))
	s.Set("next_process_step", stepRef(p.next))
	return s
}

func stepRef(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// Job is an ordered chain of process steps.
type Job struct {
	mu       *sync.RWMutex
	header   entity.Header
	status   Status
	steps    []*ProcessStep
	progress int
}

// NewJob creates a Job in status CREATED from deep copies of steps.
func NewJob(h entity.Header, steps []*ProcessStep) *Job {
	owned := make([]*ProcessStep, len(steps))
	for i, ps := range steps {
		owned[i] = ps.Clone()
	}
	return adopt(h, owned)
}

// adopt creates a Job owning steps. The steps must not be shared.
func adopt(h entity.Header, steps []*ProcessStep) *Job {
	mu := &sync.RWMutex{}
	for _, ps := range steps {
		ps.bind(mu)
	}
	return &Job{mu: mu, header: h, status: StatusCreated, steps: steps}
}

// FormatJobID returns the id of the n-th Job: Job-001, Job-002, ...
func FormatJobID(n int) string {
	return fmt.Sprintf("Job-%03d", n)
}

// Identify implements entity.Entity.
func (j *Job) Identify() (namespace, id string) {
	return j.header.Namespace, j.header.ID
}

// Header returns the Job's header.
func (j *Job) Header() entity.Header {
	return j.header
}

// ID returns the Job id.
func (j *Job) ID() string {
	return j.header.ID
}

// Steps returns the Job's process steps in execution order.
func (j *Job) Steps() []*ProcessStep {
	out := make([]*ProcessStep, len(j.steps))
	copy(out, j.steps)
	return out
}

// Entities returns the Job, its steps, and their operations.
func (j *Job) Entities() []entity.Entity {
	out := []entity.Entity{j}
	for _, ps := range j.steps {
		out = append(out, ps)
		for _, op := range ps.operations {
			out = append(out, op)
		}
	}
	return out
}

// Status returns the Job status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// SetStatus changes the Job status. Setting DONE forces progress to 100.
func (j *Job) SetStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
	if s == StatusDone {
		j.progress = 100
	}
}

// Progress returns the Job progress.
func (j *Job) Progress() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// BeginProcessStep marks step i and its first operation IN_PROGRESS.
func (j *Job) BeginProcessStep(i int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ps, err := j.stepLocked(i)
	if err != nil {
		return err
	}
	ps.status = StatusInProgress
	ps.operations[0].status = StatusInProgress
	return nil
}

// FinishProcessStep marks step i and its first operation DONE and
// recomputes the step and Job progress.
func (j *Job) FinishProcessStep(i int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ps, err := j.stepLocked(i)
	if err != nil {
		return err
	}
	ps.status = StatusDone
	ps.operations[0].status = StatusDone
	ps.operations[0].progress = 100
	ps.updateProgressLocked()
	j.updateProgressLocked()
	return nil
}

func (j *Job) stepLocked(i int) (*ProcessStep, error) {
	if i < 0 || i >= len(j.steps) {
		return nil, fmt.Errorf("%w: step %d of %d in %s", ErrIndexOutOfRange, i, len(j.steps), j.header.ID)
	}
	ps := j.steps[i]
	if len(ps.operations) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOperations, ps.header.ID)
	}
	return ps, nil
}

// Reset sets the Job, every step, and every operation to IDLE with zero progress.
func (j *Job) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = StatusIdle
	j.progress = 0
	for _, ps := range j.steps {
		ps.status = StatusIdle
		ps.progress = 0
		for _, op := range ps.operations {
			op.status = StatusIdle
			op.progress = 0
		}
	}
}

// UpdateProgress recomputes progress from the process steps.
func (j *Job) UpdateProgress() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.updateProgressLocked()
}

func (j *Job) updateProgressLocked() {
	done := 0
	for _, ps := range j.steps {
		if ps.status == StatusDone {
			done++
		}
	}
	j.progress = progress(done, len(j.steps))
}

// Snapshot implements entity.Entity. Steps and operations are nested.
func (j *Job) Snapshot() entity.Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	steps := make([]entity.Snapshot, len(j.steps))
	for i, ps := range j.steps {
		steps[i] = ps.snapshotLocked()
	}

	var s entity.Snapshot
	s.Set("header", j.header.Snapshot())
	s.Set("status", string(j.status))
	s.Set("process_steps", steps)
	s.Set("progress", j.progress)
	return s
}
