package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vec is a position or Euler rotation as written in the layout file.
type Vec [3]float64

// ScenarioFile is the root of the scenario layout file.
type ScenarioFile struct {
	Scenarios []ScenarioConfig `yaml:"scenarios"`
}

// ScenarioConfig describes one scenario variant: its entities, the process
// step templates driven by the state graph, and the per-step choreography.
type ScenarioConfig struct {
	Name        string `yaml:"name"`
	Flexibility int    `yaml:"flexibility"`

	// Points are named positions referenced by transition moves.
	Points map[string]Vec `yaml:"points"`

	Structures   []ContainerConfig   `yaml:"structures"`
	Zones        []ContainerConfig   `yaml:"zones"`
	Stations     []StationConfig     `yaml:"stations"`
	Robots       []RobotConfig       `yaml:"robots"`
	Operations   []HeaderConfig      `yaml:"operations"`
	ProcessSteps []ProcessStepConfig `yaml:"process_steps"`

	// Jobs are created when the scenario initializes.
	Jobs []JobConfig `yaml:"jobs"`

	// ResetJob is enqueued every time the shopfloor is reset.
	ResetJob JobConfig `yaml:"reset_job"`

	// ResetStations reassigns robots to stations on reset (robot id -> station id).
	ResetStations map[string]string `yaml:"reset_stations"`

	// Steps holds one entry per process step index. Entry i drives Op[i];
	// its Transition, if any, drives Transition[i].
	Steps []StepConfig `yaml:"steps"`
}

// HeaderConfig identifies an entity.
type HeaderConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Namespace   string `yaml:"namespace"`
	Description string `yaml:"description"`
}

// ContainerConfig is a structure or zone.
type ContainerConfig struct {
	HeaderConfig `yaml:",inline"`
	Parent       string `yaml:"parent"`
}

// StationConfig is a work station.
type StationConfig struct {
	HeaderConfig `yaml:",inline"`
	Parent       string `yaml:"parent"`
	Status       string `yaml:"status"`
}

// RobotConfig is a stationary robot, mobile robot, AGV, or product carrier.
type RobotConfig struct {
	HeaderConfig `yaml:",inline"`
	Kind         string     `yaml:"kind"`
	Zone         string     `yaml:"zone"`
	FacilityType string     `yaml:"facility_type"`
	Position     Vec        `yaml:"position"`
	Orientation  [4]float64 `yaml:"orientation"`
	Euler        Vec        `yaml:"euler"`
	Station      string     `yaml:"station"`
	Resettable   bool       `yaml:"resettable"`
}

// ProcessStepConfig is a process step template.
type ProcessStepConfig struct {
	HeaderConfig `yaml:",inline"`
	Operations   []string `yaml:"operations"`
	Station      string   `yaml:"station"`
	Prev         string   `yaml:"prev"`
	Next         string   `yaml:"next"`
}

// JobConfig names a job and the process step templates it is cloned from.
type JobConfig struct {
	Name  string   `yaml:"name"`
	Steps []string `yaml:"steps"`
}

// StepConfig is the choreography of one process step index.
type StepConfig struct {
	// Assign sets robots' current station before the step begins.
	Assign map[string]string `yaml:"assign"`

	// Busy robots are marked BUSY while the step runs.
	Busy []string `yaml:"busy"`

	// Release robots are reset once the step finishes. They may not be
	// moved by the step's transition.
	Release []string `yaml:"release"`

	// Transition repositions robots before the step. Not allowed on step 0.
	Transition *TransitionConfig `yaml:"transition"`
}

// TransitionConfig starts one move per entry and waits only for JoinOn.
type TransitionConfig struct {
	Moves  []MoveConfig `yaml:"moves"`
	JoinOn []string     `yaml:"join_on"`
}

// MoveConfig moves a robot to a named point.
type MoveConfig struct {
	Robot string `yaml:"robot"`
	To    string `yaml:"to"`
}

// LoadScenarios reads and validates a scenario layout file.
func LoadScenarios(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var file ScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario file: %w", err)
	}

	return &file, nil
}

// Validate checks every scenario and that flexibility values are unique.
func (f *ScenarioFile) Validate() error {
	if len(f.Scenarios) == 0 {
		return fmt.Errorf("%w: at least one scenario is required", ErrInvalidConfig)
	}

	var errs []string
	seen := make(map[int]string)
	for i := range f.Scenarios {
		sc := &f.Scenarios[i]
		if other, ok := seen[sc.Flexibility]; ok {
			errs = append(errs, fmt.Sprintf("scenarios %q and %q share flexibility %d", other, sc.Name, sc.Flexibility))
		}
		seen[sc.Flexibility] = sc.Name
		if err := sc.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// ByFlexibility returns the scenario with the given flexibility.
func (f *ScenarioFile) ByFlexibility(flexibility int) (ScenarioConfig, bool) {
	for _, sc := range f.Scenarios {
		if sc.Flexibility == flexibility {
			return sc, true
		}
	}
	return ScenarioConfig{}, false
}

// Validate checks references inside one scenario.
func (s *ScenarioConfig) Validate() error {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("scenario %q: ", s.Name)+fmt.Sprintf(format, args...))
	}

	if s.Name == "" {
		addf("name is required")
	}

	containers := make(map[string]bool)
	for _, c := range s.Structures {
		containers[c.ID] = true
	}
	for _, z := range s.Zones {
		containers[z.ID] = true
	}
	for _, z := range s.Zones {
		if z.Parent != "" && !containers[z.Parent] {
			addf("zone %q: unknown parent %q", z.ID, z.Parent)
		}
	}

	stations := make(map[string]bool)
	for _, st := range s.Stations {
		stations[st.ID] = true
		if st.Parent != "" && !containers[st.Parent] {
			addf("station %q: unknown parent %q", st.ID, st.Parent)
		}
	}

	robots := make(map[string]RobotConfig)
	for _, r := range s.Robots {
		switch r.Kind {
		case "stationary", "mobile", "agv":
		default:
			addf("robot %q: kind must be stationary, mobile, or agv", r.ID)
		}
		if r.Zone != "" && !containers[r.Zone] {
			addf("robot %q: unknown zone %q", r.ID, r.Zone)
		}
		if r.Station != "" && !stations[r.Station] {
			addf("robot %q: unknown station %q", r.ID, r.Station)
		}
		robots[r.ID] = r
	}

	ops := make(map[string]bool)
	for _, op := range s.Operations {
		ops[op.ID] = true
	}

	steps := make(map[string]bool)
	for _, ps := range s.ProcessSteps {
		steps[ps.ID] = true
	}
	for _, ps := range s.ProcessSteps {
		if len(ps.Operations) == 0 {
			addf("process step %q: at least one operation is required", ps.ID)
		}
		for _, id := range ps.Operations {
			if !ops[id] {
				addf("process step %q: unknown operation %q", ps.ID, id)
			}
		}
		if ps.Station != "" && !stations[ps.Station] {
			addf("process step %q: unknown station %q", ps.ID, ps.Station)
		}
		for _, link := range []string{ps.Prev, ps.Next} {
			if link != "" && !steps[link] {
				addf("process step %q: unknown linked step %q", ps.ID, link)
			}
		}
	}

	if len(s.Steps) == 0 {
		addf("no process steps to drive")
	}

	checkJob := func(kind string, j JobConfig) {
		if j.Name == "" {
			addf("%s: name is required", kind)
		}
		if len(j.Steps) != len(s.Steps) {
			addf("%s %q: has %d process steps, want %d", kind, j.Name, len(j.Steps), len(s.Steps))
		}
		for _, id := range j.Steps {
			if !steps[id] {
				addf("%s %q: unknown process step %q", kind, j.Name, id)
			}
		}
	}
	for _, j := range s.Jobs {
		checkJob("job", j)
	}
	checkJob("reset_job", s.ResetJob)

	for robot, station := range s.ResetStations {
		if _, ok := robots[robot]; !ok {
			addf("reset_stations: unknown robot %q", robot)
		}
		if !stations[station] {
			addf("reset_stations: unknown station %q", station)
		}
	}

	for i, step := range s.Steps {
		for robot, station := range step.Assign {
			if _, ok := robots[robot]; !ok {
				addf("step %d: assign: unknown robot %q", i, robot)
			}
			if !stations[station] {
				addf("step %d: assign: unknown station %q", i, station)
			}
		}
		for _, id := range append(append([]string{}, step.Busy...), step.Release...) {
			if _, ok := robots[id]; !ok {
				addf("step %d: unknown robot %q", i, id)
			}
		}
		if step.Transition == nil {
			continue
		}
		if i == 0 {
			addf("step 0: transitions are only allowed between steps")
			continue
		}
		moved := make(map[string]bool)
		for _, mv := range step.Transition.Moves {
			r, ok := robots[mv.Robot]
			switch {
			case !ok:
				addf("step %d: move: unknown robot %q", i, mv.Robot)
			case r.Kind == "stationary":
				addf("step %d: move: robot %q is stationary", i, mv.Robot)
			}
			if _, ok := s.Points[mv.To]; !ok {
				addf("step %d: move: unknown point %q", i, mv.To)
			}
			moved[mv.Robot] = true
		}
		for _, id := range step.Transition.JoinOn {
			if !moved[id] {
				addf("step %d: join_on robot %q is not moved", i, id)
			}
		}
		for _, id := range step.Release {
			if moved[id] {
				addf("step %d: robot %q is both moved and released", i, id)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
