package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fabulani/shopfloor-simulation/internal/motion"
)

// Kind discriminates robot variants.
type Kind string

// Robot kinds.
const (
	KindStationary Kind = "stationary"
	KindMobile     Kind = "mobile"
	KindAGV        Kind = "agv"
)

// ParseKind validates a robot kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindStationary, KindMobile, KindAGV:
		return k, nil
	default:
		return "", fmt.Errorf("entity: unknown robot kind %q", s)
	}
}

// CanMove reports whether robots of this kind travel.
func (k Kind) CanMove() bool {
	return k == KindMobile || k == KindAGV
}

// Robot statuses.
const (
	StatusIdle   = "IDLE"
	StatusBusy   = "BUSY"
	StatusMoving = motion.StatusMoving
)

const (
	fullBattery  = 1.0
	batteryDrain = 0.0001
)

// Pose is a position and an orientation quaternion.
type Pose struct {
	Position    motion.Vec3
	Orientation [4]float64
}

func (p Pose) snapshot() Snapshot {
	var s Snapshot
	s.Set("position", p.Position.Array())
	s.Set("orientation", p.Orientation)
	return s
}

// RobotSpec describes a robot to construct.
type RobotSpec struct {
	Header   Header
	Kind     Kind
	Pose     Pose
	Station  *Header
	Zone     *Header
	Euler    motion.Vec3
	Facility string
	Motion   motion.Options
}

// Robot is a stationary robot, mobile robot, AGV, or product carrier.
type Robot struct {
	mu sync.RWMutex

	header   Header
	kind     Kind
	status   string
	initial  Pose
	pose     Pose
	station  *Header
	zone     *Header
	euler    motion.Vec3
	facility string
	battery  float64
	motion   motion.Options
}

// NewRobot creates an idle robot at its initial pose.
func NewRobot(spec RobotSpec) *Robot {
	r := &Robot{
		header:   spec.Header,
		kind:     spec.Kind,
		status:   StatusIdle,
		initial:  spec.Pose,
		pose:     spec.Pose,
		station:  spec.Station,
		zone:     spec.Zone,
		euler:    spec.Euler,
		facility: spec.Facility,
		motion:   spec.Motion,
	}
	if spec.Kind.CanMove() {
		r.battery = fullBattery
	}
	return r
}

// Identify implements Entity.
func (r *Robot) Identify() (namespace, id string) {
	return r.header.Namespace, r.header.ID
}

// Header returns the robot's header.
func (r *Robot) Header() Header {
	return r.header
}

// Kind returns the robot's kind.
func (r *Robot) Kind() Kind {
	return r.kind
}

// CanMove reports whether the robot travels.
func (r *Robot) CanMove() bool {
	return r.kind.CanMove()
}

// Position implements motion.Movable.
func (r *Robot) Position() motion.Vec3 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pose.Position
}

// SetPosition implements motion.Movable.
func (r *Robot) SetPosition(p motion.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pose.Position = p
}

// Status implements motion.Movable.
func (r *Robot) Status() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// SetStatus implements motion.Movable.
func (r *Robot) SetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// Tick drains the battery of movable robots by one motion step.
func (r *Robot) Tick() {
	if !r.kind.CanMove() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.battery -= batteryDrain
}

// Battery returns the charge in [0, 1]; stationary robots report 0.
func (r *Robot) Battery() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.battery
}

// CurrentStation returns the station the robot is assigned to.
func (r *Robot) CurrentStation() (Header, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.station == nil {
		return Header{}, false
	}
	return *r.station, true
}

// SetCurrentStation assigns the robot to a station.
func (r *Robot) SetCurrentStation(h Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.station = &h
}

// Move travels to target. Stationary robots stay where they are.
func (r *Robot) Move(ctx context.Context, target motion.Vec3) error {
	if !r.kind.CanMove() {
		return nil
	}
	return motion.MoveTowards(ctx, r, target, r.motion)
}

// StartMove travels to target on its own goroutine once after, if any, has
// finished. The move is skipped when after fails, and its error returned.
func (r *Robot) StartMove(ctx context.Context, target motion.Vec3, after *motion.Task) *motion.Task {
	if after == nil && r.kind.CanMove() {
		return motion.Start(ctx, r, target, r.motion)
	}
	return motion.Go(func() error {
		if after != nil {
			if err := after.Wait(); err != nil {
				return err
			}
		}
		return r.Move(ctx, target)
	})
}

// Reset returns a movable robot to its initial position and marks it idle.
func (r *Robot) Reset(ctx context.Context) error {
	if err := r.Move(ctx, r.initial.Position); err != nil {
		return fmt.Errorf("resetting %s: %w", r.header.ID, err)
	}
	r.SetStatus(StatusIdle)
	return nil
}

// Snapshot implements Entity.
func (r *Robot) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Snapshot
	s.Set("header", r.header.Snapshot())
	s.Set("type", string(r.kind))
	s.Set("status", r.status)
	s.Set("initial_pose", r.initial.snapshot())
	s.Set("pose", r.pose.snapshot())
	s.Set("current_station", headerRef(r.station))
	if r.kind.CanMove() {
		s.Set("battery_status", r.battery)
	}
	if r.facility != "" {
		s.Set("facility_type", r.facility)
		s.Set("euler", r.euler.Array())
		s.Set("zone", headerRef(r.zone))
	}
	return s
}
