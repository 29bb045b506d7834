// Package panel serves the operator dashboard as an embedded asset.
//
// The dashboard is a single static page that connects to the admin API's
// live feed (/api/v1/ws), subscribes to robot poses, job progress, and state
// entries, and renders them as they arrive. It can also flip the scenario
// manager through POST /api/v1/manager.
package panel
