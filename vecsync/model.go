package vecsync

import (
	"time"

	"github.com/viant/sqlite-docstore/shard"
)

// SyncState describes what a replica has applied so far.
type SyncState struct {
	// Shards lists the shards the replica owns, in ParseSet format.
	Shards string
	// SnapshotLoaded is set once the snapshot seeded the replica.
	SnapshotLoaded bool
	// Watermark is the latest last_updated applied; deltas resume after it.
	Watermark time.Time
	// Applied counts entries applied by the last Sync.
	Applied int
	// UpdatedAt is the wall time of the last successful Sync.
	UpdatedAt time.Time
}

// Config captures the settings of a Syncer.
type Config struct {
	// Shards selects the shards to replicate. Required.
	Shards *shard.Set

	// Interval is the delay between Sync calls made by Run. Defaults to
	// DefaultInterval.
	Interval time.Duration
}

// DefaultInterval is used by Run when Config.Interval is zero.
const DefaultInterval = 30 * time.Second
