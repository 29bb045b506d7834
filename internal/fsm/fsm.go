// Package fsm runs finite state machines over a shared context value.
//
// A tick evaluates the current state's Next against the world left by the
// previous Run, then runs the selected state. The initial state runs once
// when the machine is created. Consecutive entries into the same state are
// counted rather than logged one by one.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrUnimplementedState is returned when a state has no defined transition.
var ErrUnimplementedState = errors.New("fsm: state has no defined transition")

// State is one node of a machine over context C.
type State[C any] interface {
	// Name identifies the state in logs and metrics.
	Name() string

	// Run executes the state body.
	Run(ctx context.Context, c C) error

	// Next selects the following state. It must not block.
	Next(c C) (State[C], error)
}

// Terminal is implemented by states that end the machine after running.
type Terminal interface {
	Terminal() bool
}

// Logger is the logging interface used by the machine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Machine executes states over context C.
type Machine[C any] struct {
	c      C
	logger Logger
	before func(C)
	enter  []func(state string)

	mu      sync.RWMutex
	current State[C]
	log     TransitionLog

	stopped atomic.Bool
}

// Option configures a Machine.
type Option[C any] func(*Machine[C])

// WithLogger sets the transition logger.
func WithLogger[C any](l Logger) Option[C] {
	return func(m *Machine[C]) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBeforeNext runs fn at the start of every tick, before Next.
func WithBeforeNext[C any](fn func(C)) Option[C] {
	return func(m *Machine[C]) {
		m.before = fn
	}
}

// WithOnEnter calls fn with the state name every time a state is entered.
func WithOnEnter[C any](fn func(state string)) Option[C] {
	return func(m *Machine[C]) {
		m.enter = append(m.enter, fn)
	}
}

// New creates a machine and runs the initial state once.
func New[C any](ctx context.Context, initial State[C], c C, opts ...Option[C]) (*Machine[C], error) {
	if initial == nil {
		return nil, fmt.Errorf("%w: no initial state", ErrUnimplementedState)
	}

	m := &Machine[C]{c: c, logger: noopLogger{}}
	for _, opt := range opts {
		opt(m)
	}

	m.enterState(initial)
	if err := initial.Run(ctx, c); err != nil {
		return nil, fmt.Errorf("running %s: %w", initial.Name(), err)
	}
	return m, nil
}

// Current returns the state that ran last.
func (m *Machine[C]) Current() State[C] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Step performs one tick: select the next state, then run it.
func (m *Machine[C]) Step(ctx context.Context) error {
	if m.before != nil {
		m.before(m.c)
	}

	current := m.Current()
	next, err := current.Next(m.c)
	if err != nil {
		return fmt.Errorf("leaving %s: %w", current.Name(), err)
	}
	if next == nil {
		return fmt.Errorf("%w: %s returned no next state", ErrUnimplementedState, current.Name())
	}

	m.enterState(next)
	if err := next.Run(ctx, m.c); err != nil {
		return fmt.Errorf("running %s: %w", next.Name(), err)
	}
	return nil
}

// RunAll ticks until ctx is done, Stop is called, a Terminal state has run,
// or a state fails.
func (m *Machine[C]) RunAll(ctx context.Context) error {
	for !m.stopped.Load() {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.Step(ctx); err != nil {
			return err
		}
		if t, ok := m.Current().(Terminal); ok && t.Terminal() {
			return nil
		}
	}
	return nil
}

// Stop ends RunAll after the current tick.
func (m *Machine[C]) Stop() {
	m.stopped.Store(true)
}

func (m *Machine[C]) enterState(s State[C]) {
	name := s.Name()

	m.mu.Lock()
	m.current = s
	prev, repeats, changed := m.log.Record(name)
	m.mu.Unlock()

	if changed {
		m.logger.Info("state entered", "state", name, "previous", prev, "previous_repeats", repeats)
	} else {
		m.logger.Debug("state repeated", "state", name, "repeats", repeats)
	}
	for _, fn := range m.enter {
		fn(name)
	}
}

// TransitionLog counts consecutive entries into the same state.
type TransitionLog struct {
	last    string
	repeats int
}

// Record registers an entry into state name. When name differs from the
// previous entry it reports the previous state and how many times it was
// repeated, and resets the counter. Otherwise it reports the running count.
func (l *TransitionLog) Record(name string) (prev string, repeats int, changed bool) {
	if l.last == name && l.last != "" {
		l.repeats++
		return name, l.repeats, false
	}
	prev, repeats = l.last, l.repeats
	l.last, l.repeats = name, 0
	return prev, repeats, true
}

// Unimplemented is a placeholder state that fails when reached.
type Unimplemented[C any] struct {
	StateName string
}

// Name implements State.
func (u Unimplemented[C]) Name() string { return u.StateName }

// Run implements State.
func (u Unimplemented[C]) Run(context.Context, C) error {
	return fmt.Errorf("%w: %s", ErrUnimplementedState, u.StateName)
}

// Next implements State.
func (u Unimplemented[C]) Next(C) (State[C], error) {
	return nil, fmt.Errorf("%w: %s", ErrUnimplementedState, u.StateName)
}
