package scenario

import (
	"strings"
	"testing"

	"github.com/Fabulani/shopfloor-simulation/internal/mirror"
	"github.com/Fabulani/shopfloor-simulation/internal/registry"
)

func TestTooltip_Describe(t *testing.T) {
	h := newHarness()
	layout, err := BuildLayout(testScenarioConfig(1), h.deps.Timing.Motion)
	if err != nil {
		t.Fatalf("BuildLayout() error = %v", err)
	}
	reg := registry.New()
	reg.AddPublishing(layout.Entities()...)

	responder := &tooltipResponder{
		ch:       h.ch,
		topic:    "resp",
		registry: reg,
		mirror:   mirror.New(h.ch, testRoot),
		logger:   noopLogger{},
	}

	tests := []struct {
		id        string
		wantLines []string
		wantDoc   bool
	}{
		{"Agv-001", []string{"Object: <b>A1</b>", "type: agv", "status: IDLE"}, true},
		{"Station11", []string{"Object: <b>Station11</b>", "status: OPERABLE"}, true},
		{"Agv-999", []string{"Object: <b>Agv-999</b>", "not found"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tip := responder.describe(tt.id)
			joined := strings.Join(tip.Lines, "\n")
			for _, want := range tt.wantLines {
				if !strings.Contains(joined, want) {
					t.Errorf("lines %q missing %q", tip.Lines, want)
				}
			}
			if (len(tip.Document) > 0) != tt.wantDoc {
				t.Errorf("document = %s, want present=%v", tip.Document, tt.wantDoc)
			}
		})
	}

	if err := responder.respond("Agv-001"); err != nil {
		t.Fatalf("respond() error = %v", err)
	}
	if payload, ok := h.ch.last("resp"); !ok || !strings.Contains(payload, `"tooltiplines"`) {
		t.Errorf("response = %q", payload)
	}
}

func TestManager_Snapshot(t *testing.T) {
	m := NewManager("DTV-000", 1, []string{"flexibility0", "flexibility1"})
	m.SetEnabled(false)

	s := m.Snapshot()
	if got := strings.Join(s.Keys(), ","); got != "header,selected_flexibility,is_enabled,scenarios" {
		t.Errorf("Keys() = %s", got)
	}
	if v, _ := s.Get("selected_flexibility"); v != 1 {
		t.Errorf("selected_flexibility = %v, want 1", v)
	}
	if v, _ := s.Get("is_enabled"); v != false {
		t.Errorf("is_enabled = %v, want false", v)
	}
	if ns, id := m.Identify(); ns != "scenario_manager" || id != "DTV-000" {
		t.Errorf("Identify() = %s/%s", ns, id)
	}
}

func TestMultiTelemetry(t *testing.T) {
	a, b := newRecordingTelemetry(), newRecordingTelemetry()
	multi := MultiTelemetry{a, nil, b}

	multi.WriteRobotPose("line", "Agv-001", "MOVE", 1, 2, 3, 0.9)
	multi.WriteJobProgress("line", "Job-001", "IN_PROGRESS", 50)
	multi.WriteStateEntry("line", NameIdle)

	for i, r := range []*recordingTelemetry{a, b} {
		if r.poses["Agv-001"] != 1 || r.jobs["Job-001"] != 1 || r.stateCount(NameIdle) != 1 {
			t.Errorf("sink %d: poses=%v jobs=%v states=%v", i, r.poses, r.jobs, r.states)
		}
	}
}
