package motion

import (
	"context"
	"errors"
	"sync"
)

// Task is a movement running on its own goroutine.
type Task struct {
	done chan struct{}
	err  error
}

// Start moves m toward target on a new goroutine.
func Start(ctx context.Context, m Movable, target Vec3, opts Options) *Task {
	return Go(func() error {
		return MoveTowards(ctx, m, target, opts)
	})
}

// Go runs fn on a new goroutine and returns its handle.
func Go(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = fn()
	}()
	return t
}

// Done is closed when the movement has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the movement has finished and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// JoinSet is the set of tasks a transition waits for.
//
// Tasks that are started but never added keep running after Wait returns.
type JoinSet struct {
	mu    sync.Mutex
	tasks []*Task
}

// Add includes tasks in the set.
func (j *JoinSet) Add(tasks ...*Task) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.tasks = append(j.tasks, tasks...)
}

// Len returns the number of tasks in the set.
func (j *JoinSet) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.tasks)
}

// Wait blocks until every task in the set has finished.
// Errors from individual tasks are joined.
func (j *JoinSet) Wait() error {
	j.mu.Lock()
	tasks := make([]*Task, len(j.tasks))
	copy(tasks, j.tasks)
	j.mu.Unlock()

	var errs []error
	for _, t := range tasks {
		if err := t.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
