package registry

import (
	"sync"

	"github.com/Fabulani/shopfloor-simulation/internal/job"
)

// JobQueue holds the Jobs waiting for or under execution, in arrival order.
type JobQueue struct {
	mu   sync.RWMutex
	jobs []*job.Job
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{}
}

// Push appends j to the queue.
func (q *JobQueue) Push(j *job.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
}

// Remove drops j from the queue and reports whether it was present.
func (q *JobQueue) Remove(j *job.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, queued := range q.jobs {
		if queued == j {
			q.jobs = append(q.jobs[:i:i], q.jobs[i+1:]...)
			return true
		}
	}
	return false
}

// Jobs returns a copy of the queue.
func (q *JobQueue) Jobs() []*job.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*job.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Len returns the number of queued Jobs.
func (q *JobQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.jobs)
}

// Get returns the queued Job with the given id.
func (q *JobQueue) Get(id string) (*job.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, j := range q.jobs {
		if j.ID() == id {
			return j, true
		}
	}
	return nil, false
}

// FirstWithStatus returns the oldest queued Job in status s.
func (q *JobQueue) FirstWithStatus(s job.Status) (*job.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, j := range q.jobs {
		if j.Status() == s {
			return j, true
		}
	}
	return nil, false
}
