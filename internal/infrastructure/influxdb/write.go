package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementRobotPose   = "robot_pose"
	MeasurementJobProgress = "job_progress"
	MeasurementStateEntry  = "state_entry"
)

// WriteRobotPose records where a robot is and how much battery it has left.
//
//	robot_pose,robot=Agv-001,scenario=flexibility0,status=MOVE x=1000,y=0,z=0,battery=0.98
func (c *Client) WriteRobotPose(scenario, robotID, status string, x, y, z, battery float64) {
	c.emit(write.NewPointWithMeasurement(MeasurementRobotPose).
		AddTag("scenario", scenario).
		AddTag("robot", robotID).
		AddTag("status", status).
		AddField("x", x).
		AddField("y", y).
		AddField("z", z).
		AddField("battery", battery))
}

// WriteJobProgress records the progress percentage of a Job.
//
//	job_progress,job=Job-001,scenario=flexibility0,status=IN_PROGRESS progress=42i
func (c *Client) WriteJobProgress(scenario, jobID, status string, progress int) {
	c.emit(write.NewPointWithMeasurement(MeasurementJobProgress).
		AddTag("scenario", scenario).
		AddTag("job", jobID).
		AddTag("status", status).
		AddField("progress", progress))
}

// WriteStateEntry counts one entry of the state machine into state.
func (c *Client) WriteStateEntry(scenario, state string) {
	c.emit(write.NewPointWithMeasurement(MeasurementStateEntry).
		AddTag("scenario", scenario).
		AddTag("state", state).
		AddField("count", 1))
}

func (c *Client) emit(p *write.Point) {
	if c.closed.Load() {
		return
	}
	c.writer.WritePoint(p.SetTime(time.Now()))
}
