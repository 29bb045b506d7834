package motion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeMovable records movement for assertions.
type fakeMovable struct {
	mu       sync.Mutex
	pos      Vec3
	status   string
	ticks    int
	statuses []string
}

func (f *fakeMovable) Position() Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeMovable) SetPosition(v Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = v
}

func (f *fakeMovable) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeMovable) SetStatus(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
	f.statuses = append(f.statuses, s)
}

func (f *fakeMovable) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
}

// =============================================================================
// Step Tests
// =============================================================================

func TestStep(t *testing.T) {
	tests := []struct {
		name    string
		current Vec3
		target  Vec3
		step    float64
		want    Vec3
	}{
		{"positive axes", Vec3{0, 0, 0}, Vec3{100, 50, 20}, 10, Vec3{10, 10, 10}},
		{"negative axes", Vec3{100, 100, 0}, Vec3{0, 0, 0}, 10, Vec3{90, 90, 0}},
		{"snap within step", Vec3{95, 0, 0}, Vec3{100, 0, 0}, 10, Vec3{100, 0, 0}},
		{"snap at exact step", Vec3{90, 0, 0}, Vec3{100, 0, 0}, 10, Vec3{100, 0, 0}},
		{"already there", Vec3{1, 2, 3}, Vec3{1, 2, 3}, 10, Vec3{1, 2, 3}},
		{"mixed directions", Vec3{360, -800, 0}, Vec3{360, 550, -5}, 10, Vec3{360, -790, -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Step(tt.current, tt.target, tt.step); got != tt.want {
				t.Errorf("Step() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTicks(t *testing.T) {
	tests := []struct {
		current, target Vec3
		step            float64
		want            int
	}{
		{Vec3{0, 0, 0}, Vec3{100, 0, 0}, 10, 10},
		{Vec3{0, 0, 0}, Vec3{105, 0, 0}, 10, 11},
		{Vec3{0, 0, 0}, Vec3{30, -70, 5}, 10, 7},
		{Vec3{5, 5, 5}, Vec3{5, 5, 5}, 10, 0},
		{Vec3{0, 0, 0}, Vec3{10, 0, 0}, 0, 0},
	}

	for _, tt := range tests {
		if got := Ticks(tt.current, tt.target, tt.step); got != tt.want {
			t.Errorf("Ticks(%v, %v, %v) = %d, want %d", tt.current, tt.target, tt.step, got, tt.want)
		}
	}
}

// =============================================================================
// MoveTowards Tests
// =============================================================================

func TestMoveTowards_Converges(t *testing.T) {
	tests := []struct {
		name   string
		start  Vec3
		target Vec3
		step   float64
	}{
		{"station move", Vec3{360, -800, 0}, Vec3{360, 550, 0}, 10},
		{"uneven remainder", Vec3{0, 0, 0}, Vec3{37, -23, 4}, 10},
		{"step of one", Vec3{-3, 7, 0}, Vec3{4, -2, 1}, 1},
		{"large step", Vec3{0, 0, 0}, Vec3{12, 0, 0}, 100},
		{"no movement", Vec3{8, 8, 8}, Vec3{8, 8, 8}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMovable{pos: tt.start, status: "IDLE"}

			if err := MoveTowards(context.Background(), m, tt.target, Options{Step: tt.step}); err != nil {
				t.Fatalf("MoveTowards() error = %v", err)
			}
			if m.pos != tt.target {
				t.Errorf("final position = %v, want %v", m.pos, tt.target)
			}
			if want := Ticks(tt.start, tt.target, tt.step); m.ticks != want {
				t.Errorf("ticks = %d, want %d", m.ticks, want)
			}
			if m.status != "IDLE" {
				t.Errorf("status after move = %q, want IDLE restored", m.status)
			}
			if len(m.statuses) == 0 || m.statuses[0] != StatusMoving {
				t.Errorf("statuses = %v, want %s first", m.statuses, StatusMoving)
			}
		})
	}
}

func TestMoveTowards_InvalidStep(t *testing.T) {
	m := &fakeMovable{status: "IDLE"}
	err := MoveTowards(context.Background(), m, Vec3{10, 0, 0}, Options{Step: 0})
	if !errors.Is(err, ErrInvalidStep) {
		t.Errorf("MoveTowards() error = %v, want ErrInvalidStep", err)
	}
	if len(m.statuses) != 0 {
		t.Errorf("status changed on invalid step: %v", m.statuses)
	}
}

func TestMoveTowards_Cancelled(t *testing.T) {
	m := &fakeMovable{status: "BUSY"}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- MoveTowards(ctx, m, Vec3{10000, 0, 0}, Options{Step: 1, Interval: time.Millisecond})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("MoveTowards() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("MoveTowards did not observe cancellation")
	}

	if got := m.Status(); got != "BUSY" {
		t.Errorf("status after cancel = %q, want BUSY restored", got)
	}
	if got := m.Position(); got == (Vec3{10000, 0, 0}) {
		t.Error("cancelled movement reached its target")
	}
}

// =============================================================================
// Task and JoinSet Tests
// =============================================================================

func TestStart_Wait(t *testing.T) {
	m := &fakeMovable{status: "IDLE"}
	task := Start(context.Background(), m, Vec3{50, 0, 0}, Options{Step: 10})

	if err := task.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	select {
	case <-task.Done():
	default:
		t.Error("Done() not closed after Wait returned")
	}
	if got := m.Position(); got != (Vec3{50, 0, 0}) {
		t.Errorf("position = %v, want (50, 0, 0)", got)
	}
}

func TestGo_ReturnsError(t *testing.T) {
	want := errors.New("blocked")
	task := Go(func() error { return want })
	if err := task.Wait(); !errors.Is(err, want) {
		t.Errorf("Wait() error = %v, want %v", err, want)
	}
}

func TestJoinSet_WaitsOnlyForMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fast := &fakeMovable{status: "IDLE"}
	slow := &fakeMovable{status: "IDLE"}

	fastTask := Start(ctx, fast, Vec3{20, 0, 0}, Options{Step: 10, Interval: time.Millisecond})
	slowTask := Start(ctx, slow, Vec3{1000000, 0, 0}, Options{Step: 1, Interval: time.Millisecond})

	var join JoinSet
	join.Add(fastTask)
	if join.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", join.Len())
	}

	if err := join.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := fast.Position(); got != (Vec3{20, 0, 0}) {
		t.Errorf("joined robot position = %v, want (20, 0, 0)", got)
	}

	select {
	case <-slowTask.Done():
		t.Error("task outside the join set finished early")
	default:
	}

	cancel()
	if err := slowTask.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("background task error = %v, want context.Canceled", err)
	}
}

func TestJoinSet_JoinsErrors(t *testing.T) {
	var join JoinSet
	join.Add(
		Start(context.Background(), &fakeMovable{}, Vec3{1, 0, 0}, Options{Step: -1}),
		Start(context.Background(), &fakeMovable{}, Vec3{1, 0, 0}, Options{Step: 1}),
	)
	if err := join.Wait(); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Wait() error = %v, want ErrInvalidStep", err)
	}
}

func TestJoinSet_Empty(t *testing.T) {
	var join JoinSet
	if err := join.Wait(); err != nil {
		t.Errorf("Wait() on empty set error = %v", err)
	}
}
