package motion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// StatusMoving is the status a Movable carries while it travels.
const StatusMoving = "MOVE"

// ErrInvalidStep is returned when the step size is not positive.
var ErrInvalidStep = errors.New("motion: step must be positive")

// Vec3 is a point in shopfloor coordinates.
type Vec3 struct {
	X, Y, Z float64
}

// Array returns the coordinates as [x, y, z].
func (v Vec3) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// String formats the point as (x, y, z).
func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Movable is anything the motion unit can relocate.
type Movable interface {
	Position() Vec3
	SetPosition(Vec3)
	Status() string
	SetStatus(string)

	// Tick is called once per applied movement step.
	Tick()
}

// Options controls the stepping of a movement.
type Options struct {
	// Step is the per-tick distance on each axis.
	Step float64

	// Interval is the delay between ticks.
	Interval time.Duration
}

// Step advances current one tick toward target.
func Step(current, target Vec3, step float64) Vec3 {
	return Vec3{
		X: stepAxis(current.X, target.X, step),
		Y: stepAxis(current.Y, target.Y, step),
		Z: stepAxis(current.Z, target.Z, step),
	}
}

func stepAxis(current, target, step float64) float64 {
	distance := target - current
	switch {
	case distance > step:
		return current + step
	case distance < -step:
		return current - step
	default:
		return target
	}
}

// Ticks returns the number of ticks needed to reach target from current.
func Ticks(current, target Vec3, step float64) int {
	if step <= 0 {
		return 0
	}
	longest := math.Max(math.Abs(target.X-current.X),
		math.Max(math.Abs(target.Y-current.Y), math.Abs(target.Z-current.Z)))
	return int(math.Ceil(longest / step))
}

// MoveTowards steps m to target, sleeping opts.Interval between ticks.
//
// The status of m is StatusMoving for the duration of the movement and is
// restored afterwards, including when ctx is cancelled. A cancelled movement
// stops where it is and returns the context error.
func MoveTowards(ctx context.Context, m Movable, target Vec3, opts Options) error {
	if opts.Step <= 0 {
		return ErrInvalidStep
	}

	prev := m.Status()
	m.SetStatus(StatusMoving)
	defer m.SetStatus(prev)

	var timer *time.Timer
	if opts.Interval > 0 {
		timer = time.NewTimer(opts.Interval)
		defer timer.Stop()
	}

	for current := m.Position(); current != target; current = m.Position() {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.SetPosition(Step(current, target, opts.Step))
		m.Tick()

		if timer == nil {
			continue
		}
		timer.Reset(opts.Interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
