// Package influxdb writes simulation telemetry to an InfluxDB v2 bucket.
//
// Three measurements are recorded: robot_pose for every published robot
// snapshot, job_progress for every published Job snapshot, and state_entry
// for every state the scenario machine enters. Points are batched by the
// client library according to batch_size and flush_interval; rejected
// batches are reported to the SetOnError callback and counted by Failures.
//
// Connect returns ErrDisabled when the influxdb section is switched off, so
// callers can treat telemetry as optional:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	switch {
//	case errors.Is(err, influxdb.ErrDisabled):
//	case err != nil:
//	    return err
//	default:
//	    defer client.Close()
//	}
package influxdb
