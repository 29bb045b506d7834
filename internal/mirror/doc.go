// Package mirror keeps a remote view of every registered entity in sync
// with the simulation while publishing as little as possible.
//
// An entity's topic is initialized once with its full snapshot on the head
// topic (root/namespace/id) and every key on its atomic topic
// (root/namespace/id/key). Afterwards SendPayload publishes nothing when the
// snapshot is unchanged, and otherwise the head plus only the changed keys.
//
// The cache of last published snapshots is keyed by entity identity, so
// process steps cloned into several Jobs keep separate baselines even though
// they share ids. A cache entry is only advanced after every publish of the
// cycle succeeded; a failed cycle is retried with the same delta.
//
// Some atomic topics, such as job status, are also command topics. When
// an Echoes log is set, every atomic payload is recorded before it is
// published so that subscribers can drop the simulation's own echoes
// instead of applying them as commands.
package mirror
