// Package docstore implements a sharded document store on SQLite with
// point-in-time snapshots and timestamp deltas for replica synchronization.
//
// Each document is one row keyed by id holding an opaque payload, an
// optional embedding buffer, the shard the id routes to and the time of its
// last write. Soft deletion keeps the row with a NULL payload (a tombstone)
// so that replicas observe deletions through Delta; Cleanup removes
// tombstones physically.
//
// A snapshot is a full copy of the primary table taken by CreateSnapshot.
// Replicas bootstrap from Snapshot for the shards they own, adopt
// SnapshotTimestamp as their watermark, and then poll Delta with that
// watermark to receive later writes.
package docstore
