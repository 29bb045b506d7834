package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/mirror"
	"github.com/Fabulani/shopfloor-simulation/internal/motion"
)

const testRoot = "test/StateMachine"

// mockChannel records publishes and subscription patterns.
type mockChannel struct {
	mu        sync.Mutex
	published []message
	patterns  []string
}

type message struct {
	topic   string
	payload string
}

func (m *mockChannel) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, message{topic: topic, payload: string(payload)})
	return nil
}

func (m *mockChannel) Subscribe(pattern string, _ channel.Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	return nil
}

// last returns the most recent payload published on topic.
func (m *mockChannel) last(topic string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			return m.published[i].payload, true
		}
	}
	return "", false
}

// recordingRecorder stores control events in memory.
type recordingRecorder struct {
	mu     sync.Mutex
	events []controllog.Event
}

func (r *recordingRecorder) Create(_ context.Context, e *controllog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recordingRecorder) snapshot() []controllog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]controllog.Event(nil), r.events...)
}

// recordingLogger keeps warnings.
type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// recordingTelemetry counts telemetry writes.
type recordingTelemetry struct {
	mu     sync.Mutex
	poses  map[string]int
	jobs   map[string]int
	states []string
}

func newRecordingTelemetry() *recordingTelemetry {
	return &recordingTelemetry{poses: map[string]int{}, jobs: map[string]int{}}
}

func (r *recordingTelemetry) WriteRobotPose(_, robotID, _ string, _, _, _, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poses[robotID]++
}

func (r *recordingTelemetry) WriteJobProgress(_, jobID, _ string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[jobID]++
}

func (r *recordingTelemetry) WriteStateEntry(_, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingTelemetry) stateCount(state string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == state {
			n++
		}
	}
	return n
}

// testScenarioConfig returns a scenario with n process steps, one operation
// each, an AGV, a product carrier, and a stationary robot. Steps listed in
// transitions move the product and join on it.
func testScenarioConfig(n int, transitions ...int) config.ScenarioConfig {
	sc := config.ScenarioConfig{
		Name:        "line",
		Flexibility: 0,
		Points: map[string]config.Vec{
			"home": {0, 0, 0},
			"far":  {40, 0, 0},
		},
		Structures: []config.ContainerConfig{
			{HeaderConfig: config.HeaderConfig{ID: "Structure-001", Name: "Structure1", Namespace: "structure"}},
		},
		Zones: []config.ContainerConfig{
			{HeaderConfig: config.HeaderConfig{ID: "robotzone", Name: "robotzone", Namespace: "robots"}, Parent: "Structure-001"},
		},
		Stations: []config.StationConfig{
			{HeaderConfig: config.HeaderConfig{ID: "Station11", Name: "Station11", Namespace: "stations"}, Parent: "Structure-001"},
			{HeaderConfig: config.HeaderConfig{ID: "Station12", Name: "Station12", Namespace: "stations"}, Parent: "Structure-001"},
		},
		Robots: []config.RobotConfig{
			{HeaderConfig: config.HeaderConfig{ID: "Agv-001", Name: "A1", Namespace: "robots"}, Kind: "agv",
				Zone: "robotzone", FacilityType: "2", Position: config.Vec{1000, 0, 0}, Station: "Station11", Resettable: true},
			{HeaderConfig: config.HeaderConfig{ID: "Product-001", Name: "P1", Namespace: "products"}, Kind: "mobile",
				Position: config.Vec{0, 0, 0}, Station: "Station11"},
			{HeaderConfig: config.HeaderConfig{ID: "StationaryRobot-001", Name: "S1", Namespace: "robots"}, Kind: "stationary",
				Position: config.Vec{615, 100, 0}, Station: "Station11", Resettable: true},
		},
		ResetStations: map[string]string{"Agv-001": "Station11"},
	}

	ids := make([]string, n)
	for i := range n {
		op := fmt.Sprintf("OP-0%d0", i)
		ps := fmt.Sprintf("PS-00%d", i)
		ids[i] = ps
		sc.Operations = append(sc.Operations, config.HeaderConfig{ID: op, Name: fmt.Sprintf("Op%d0", i), Namespace: "operations"})
		sc.ProcessSteps = append(sc.ProcessSteps, config.ProcessStepConfig{
			HeaderConfig: config.HeaderConfig{ID: ps, Name: fmt.Sprintf("Ps0%d", i), Namespace: "process_steps"},
			Operations:   []string{op},
			Station:      "Station11",
		})
		step := config.StepConfig{
			Assign:  map[string]string{"Agv-001": "Station12"},
			Busy:    []string{"StationaryRobot-001", "Agv-001"},
			Release: []string{"StationaryRobot-001"},
		}
		sc.Steps = append(sc.Steps, step)
	}
	for _, i := range transitions {
		sc.Steps[i].Transition = &config.TransitionConfig{
			Moves:  []config.MoveConfig{{Robot: "Product-001", To: "far"}},
			JoinOn: []string{"Product-001"},
		}
	}
	sc.Jobs = []config.JobConfig{{Name: "Porsche1", Steps: ids}}
	sc.ResetJob = config.JobConfig{Name: "Porsche1", Steps: ids}
	return sc
}

func testTiming() Timing {
	return Timing{
		SyncInterval: time.Millisecond,
		Motion:       motion.Options{Step: 10},
	}
}

type harness struct {
	ch      *mockChannel
	manager *Manager
	inbox   *Inbox
	deps    Deps
}

func newHarness() *harness {
	h := &harness{ch: &mockChannel{}}
	h.manager = NewManager("DTV-000", 0, []string{"line"})
	h.inbox = NewInbox(channel.Topics{Root: testRoot}, "DTV-000", h.manager)
	h.deps = Deps{
		Channel:   h.ch,
		Manager:   h.manager,
		Inbox:     h.inbox,
		Timing:    testTiming(),
		RootTopic: testRoot,
	}
	return h
}

// newTestContext builds a context without background tasks. Resettable
// robots are registered as Initialize would.
func (h *harness) newTestContext(t *testing.T, sc config.ScenarioConfig) *Context {
	t.Helper()
	layout, err := BuildLayout(sc, h.deps.Timing.Motion)
	if err != nil {
		t.Fatalf("BuildLayout() error = %v", err)
	}
	c := newContext(context.Background(), layout, h.deps)
	c.Registry.AddResettable(layout.Resettable()...)
	t.Cleanup(c.Run.Clear)
	return c
}

// setStatus delivers a job status message as the broker would.
func (h *harness) setStatus(t *testing.T, jobID, status string) {
	t.Helper()
	topic := channel.Topics{Root: testRoot}.JobStatus(jobID)
	if err := h.inbox.HandleJobStatus(topic, []byte(status)); err != nil {
		t.Fatalf("HandleJobStatus() error = %v", err)
	}
}

// initialized reports whether the mirror holds a baseline for e. Unchanged
// entities publish nothing.
func initialized(c *Context, e entity.Entity) bool {
	_, err := c.Mirror.SendPayload(e)
	return !errors.Is(err, mirror.ErrNotInitialized)
}

func names(states []State) string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.Name()
	}
	return strings.Join(out, " ")
}
