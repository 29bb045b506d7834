// Package api provides the admin HTTP server of the shopfloor simulation.
//
// It exposes health and status endpoints, the control event log, operator
// control of the scenario manager, Prometheus metrics, and a WebSocket live
// feed of robot poses, Job progress, and state entries.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
