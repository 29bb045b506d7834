package scenario

import (
	"context"
	"sync/atomic"
)

// RunFlag is the shared run flag of a scenario instance. Background tasks
// watch Done; clearing the flag cancels them at their next tick.
type RunFlag struct {
	ctx    context.Context
	cancel context.CancelFunc
	active atomic.Bool
}

// NewRunFlag creates a raised flag that is also cleared when parent ends.
func NewRunFlag(parent context.Context) *RunFlag {
	ctx, cancel := context.WithCancel(parent)
	f := &RunFlag{ctx: ctx, cancel: cancel}
	f.active.Store(true)
	return f
}

// Active reports whether the flag is raised and its parent is still live.
func (f *RunFlag) Active() bool {
	return f.active.Load() && f.ctx.Err() == nil
}

// Clear lowers the flag.
func (f *RunFlag) Clear() {
	f.active.Store(false)
	f.cancel()
}

// Context returns a context cancelled when the flag is cleared.
func (f *RunFlag) Context() context.Context {
	return f.ctx
}

// Done is closed when the flag is cleared.
func (f *RunFlag) Done() <-chan struct{} {
	return f.ctx.Done()
}
