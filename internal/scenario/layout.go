package scenario

import (
	"fmt"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/job"
	"github.com/Fabulani/shopfloor-simulation/internal/motion"
)

// Layout is the instantiated shopfloor of one scenario variant.
type Layout struct {
	Name        string
	Flexibility int

	Containers []*entity.Zone
	Stations   []*entity.Station
	Robots     []*entity.Robot

	// Catalog holds the process-step templates Jobs are cloned from.
	Catalog *job.Catalog

	// InitialJobs are created when the scenario initializes.
	InitialJobs []config.JobConfig

	// ResetJob is created each time the shopfloor is reset.
	ResetJob config.JobConfig

	// ResetAssignments reassign robots to stations on reset.
	ResetAssignments []Assignment

	// Steps holds the choreography of each process step index.
	Steps []Choreography

	robots     map[string]*entity.Robot
	resettable []entity.Resettable
}

// Assignment puts a robot on a station.
type Assignment struct {
	Robot   *entity.Robot
	Station entity.Header
}

// Choreography is what the robots do around one process step.
type Choreography struct {
	Assign  []Assignment
	Busy    []*entity.Robot
	Release []*entity.Robot

	// Transition, if set, runs before the step.
	Transition *Transition
}

// Transition moves robots into place. Only the JoinOn robots are waited
// for; the others keep moving while the next step runs.
type Transition struct {
	Moves  []Move
	JoinOn map[*entity.Robot]bool
}

// Move sends a robot to a target position.
type Move struct {
	Robot  *entity.Robot
	Target motion.Vec3
}

// BuildLayout instantiates the entities of sc. Movable robots step with
// opts.
func BuildLayout(sc config.ScenarioConfig, opts motion.Options) (*Layout, error) {
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q", ErrNoProcessSteps, sc.Name)
	}

	l := &Layout{
		Name:        sc.Name,
		Flexibility: sc.Flexibility,
		InitialJobs: sc.Jobs,
		ResetJob:    sc.ResetJob,
		robots:      make(map[string]*entity.Robot, len(sc.Robots)),
	}

	containers := make(map[string]*entity.Zone)
	addContainer := func(c config.ContainerConfig) error {
		h := header(c.HeaderConfig)
		var parent *entity.Header
		if c.Parent != "" {
			p, ok := containers[c.Parent]
			if !ok {
				return fmt.Errorf("%w: %s: unknown parent %q", ErrInvalidLayout, c.ID, c.Parent)
			}
			ph := p.Header()
			parent = &ph
			p.Adopt(h)
		}
		z := entity.NewZone(h, parent)
		containers[c.ID] = z
		l.Containers = append(l.Containers, z)
		return nil
	}
	for _, c := range sc.Structures {
		if err := addContainer(c); err != nil {
			return nil, err
		}
	}
	for _, c := range sc.Zones {
		if err := addContainer(c); err != nil {
			return nil, err
		}
	}

	stations := make(map[string]entity.Header, len(sc.Stations))
	for _, st := range sc.Stations {
		h := header(st.HeaderConfig)
		var parent *entity.Header
		if p, ok := containers[st.Parent]; ok {
			ph := p.Header()
			parent = &ph
			p.Adopt(h)
		}
		s := entity.NewStation(h, parent)
		if st.Status != "" {
			s.SetStatus(st.Status)
		}
		stations[st.ID] = h
		l.Stations = append(l.Stations, s)
	}

	for _, rc := range sc.Robots {
		kind, err := entity.ParseKind(rc.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: robot %s: %w", ErrInvalidLayout, rc.ID, err)
		}
		h := header(rc.HeaderConfig)
		spec := entity.RobotSpec{
			Header: h,
			Kind:   kind,
			Pose: entity.Pose{
				Position:    vec(rc.Position),
				Orientation: rc.Orientation,
			},
			Euler:    vec(rc.Euler),
			Facility: rc.FacilityType,
			Motion:   opts,
		}
		if st, ok := stations[rc.Station]; ok {
			spec.Station = &st
		}
		if z, ok := containers[rc.Zone]; ok {
			zh := z.Header()
			spec.Zone = &zh
			z.Adopt(h)
		}

		r := entity.NewRobot(spec)
		l.robots[rc.ID] = r
		l.Robots = append(l.Robots, r)
		if rc.Resettable {
			l.resettable = append(l.resettable, r)
		}
	}

	ops := make(map[string]*job.Operation, len(sc.Operations))
	for _, oc := range sc.Operations {
		ops[oc.ID] = job.NewOperation(header(oc))
	}
	templates := make([]*job.ProcessStep, 0, len(sc.ProcessSteps))
	for _, pc := range sc.ProcessSteps {
		spec := job.StepSpec{
			Header:  header(pc.HeaderConfig),
			Station: stations[pc.Station],
			Prev:    pc.Prev,
			Next:    pc.Next,
		}
		for _, id := range pc.Operations {
			op, ok := ops[id]
			if !ok {
				return nil, fmt.Errorf("%w: process step %s: unknown operation %q", ErrInvalidLayout, pc.ID, id)
			}
			spec.Operations = append(spec.Operations, op)
		}
		templates = append(templates, job.NewProcessStep(spec))
	}
	l.Catalog = job.NewCatalog(templates...)

	var err error
	if l.ResetAssignments, err = l.assignments(sc.ResetStations, stations); err != nil {
		return nil, err
	}

	for i, stc := range sc.Steps {
		step, err := l.choreography(stc, stations, sc.Points)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		l.Steps = append(l.Steps, step)
	}

	return l, nil
}

// Robot returns the robot with the given id.
func (l *Layout) Robot(id string) (*entity.Robot, bool) {
	r, ok := l.robots[id]
	return r, ok
}

// Resettable returns the robots restored on reset.
func (l *Layout) Resettable() []entity.Resettable {
	return l.resettable
}

// Entities returns every layout entity in publishing order.
func (l *Layout) Entities() []entity.Entity {
	out := make([]entity.Entity, 0, len(l.Containers)+len(l.Stations)+len(l.Robots))
	for _, z := range l.Containers {
		out = append(out, z)
	}
	for _, s := range l.Stations {
		out = append(out, s)
	}
	for _, r := range l.Robots {
		out = append(out, r)
	}
	return out
}

func (l *Layout) choreography(sc config.StepConfig, stations map[string]entity.Header, points map[string]config.Vec) (Choreography, error) {
	var c Choreography
	var err error

	if c.Assign, err = l.assignments(sc.Assign, stations); err != nil {
		return c, err
	}
	if c.Busy, err = l.lookupRobots(sc.Busy); err != nil {
		return c, err
	}
	if c.Release, err = l.lookupRobots(sc.Release); err != nil {
		return c, err
	}

	if sc.Transition == nil {
		return c, nil
	}
	t := &Transition{JoinOn: make(map[*entity.Robot]bool, len(sc.Transition.JoinOn))}
	for _, mv := range sc.Transition.Moves {
		r, ok := l.robots[mv.Robot]
		if !ok {
			return c, fmt.Errorf("%w: move: unknown robot %q", ErrInvalidLayout, mv.Robot)
		}
		p, ok := points[mv.To]
		if !ok {
			return c, fmt.Errorf("%w: move: unknown point %q", ErrInvalidLayout, mv.To)
		}
		t.Moves = append(t.Moves, Move{Robot: r, Target: vec(p)})
	}
	joinOn, err := l.lookupRobots(sc.Transition.JoinOn)
	if err != nil {
		return c, err
	}
	for _, r := range joinOn {
		t.JoinOn[r] = true
	}
	c.Transition = t
	return c, nil
}

func (l *Layout) assignments(m map[string]string, stations map[string]entity.Header) ([]Assignment, error) {
	out := make([]Assignment, 0, len(m))
	// Layout order keeps assignments deterministic.
	for _, r := range l.Robots {
		stationID, ok := m[r.Header().ID]
		if !ok {
			continue
		}
		st, ok := stations[stationID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown station %q", ErrInvalidLayout, stationID)
		}
		out = append(out, Assignment{Robot: r, Station: st})
	}
	if len(out) != len(m) {
		return nil, fmt.Errorf("%w: assignment to unknown robot", ErrInvalidLayout)
	}
	return out, nil
}

func (l *Layout) lookupRobots(ids []string) ([]*entity.Robot, error) {
	out := make([]*entity.Robot, 0, len(ids))
	for _, id := range ids {
		r, ok := l.robots[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown robot %q", ErrInvalidLayout, id)
		}
		out = append(out, r)
	}
	return out, nil
}

func header(h config.HeaderConfig) entity.Header {
	return entity.Header{
		ID:          h.ID,
		Name:        h.Name,
		Namespace:   h.Namespace,
		Description: h.Description,
	}
}

func vec(v config.Vec) motion.Vec3 {
	return motion.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
