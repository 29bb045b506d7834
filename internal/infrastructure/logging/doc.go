// Package logging configures the simulation's structured logger.
//
// Entries are written through log/slog as JSON (default) or text, tagged with
// the service name and version. Components take a child logger:
//
//	log := logging.New(cfg.Logging, version)
//	inbox.SetLogger(log.Component("inbox"))
//
// The level can be raised or lowered at runtime with SetLevel; the admin API
// exposes it at /api/v1/logging. Watermill returns an adapter so the
// in-memory message channel logs through the same handler.
//
// Never log broker passwords or InfluxDB tokens.
package logging
