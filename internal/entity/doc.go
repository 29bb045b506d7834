// Package entity defines the shopfloor objects mirrored to the twin viewer.
//
// Every entity identifies itself by namespace and id and renders its
// publishable attributes as an ordered Snapshot. Robots are a single type
// discriminated by Kind; only movable kinds travel, hold a battery, and
// return to their initial position on Reset.
//
// Entity attributes are guarded by per-entity mutexes: the scenario loop
// writes them while the synchronization task reads snapshots.
package entity
