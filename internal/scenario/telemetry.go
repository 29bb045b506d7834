package scenario

import (
	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/job"
)

// Telemetry records time series of a running scenario.
// *influxdb.Client implements it.
type Telemetry interface {
	WriteRobotPose(scenario, robotID, status string, x, y, z, battery float64)
	WriteJobProgress(scenario, jobID, status string, progress int)
	WriteStateEntry(scenario, state string)
}

// telemetryObserver forwards published robot and Job snapshots.
type telemetryObserver struct {
	scenario string
	out      Telemetry
}

// Observe implements mirror.Observer.
func (o telemetryObserver) Observe(e entity.Entity, _ entity.Snapshot) {
	switch v := e.(type) {
	case *entity.Robot:
		p := v.Position()
		o.out.WriteRobotPose(o.scenario, v.Header().ID, v.Status(), p.X, p.Y, p.Z, v.Battery())
	case *job.Job:
		o.out.WriteJobProgress(o.scenario, v.ID(), string(v.Status()), v.Progress())
	}
}

// MultiTelemetry fans writes out to several sinks. Nil entries are skipped.
type MultiTelemetry []Telemetry

// WriteRobotPose implements Telemetry.
func (m MultiTelemetry) WriteRobotPose(scenario, robotID, status string, x, y, z, battery float64) {
	for _, t := range m {
		if t != nil {
			t.WriteRobotPose(scenario, robotID, status, x, y, z, battery)
		}
	}
}

// WriteJobProgress implements Telemetry.
func (m MultiTelemetry) WriteJobProgress(scenario, jobID, status string, progress int) {
	for _, t := range m {
		if t != nil {
			t.WriteJobProgress(scenario, jobID, status, progress)
		}
	}
}

// WriteStateEntry implements Telemetry.
func (m MultiTelemetry) WriteStateEntry(scenario, state string) {
	for _, t := range m {
		if t != nil {
			t.WriteStateEntry(scenario, state)
		}
	}
}
