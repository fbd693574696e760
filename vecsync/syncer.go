package vecsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viant/sqlite-docstore/docstore"
)

// Syncer drives a Replica from a Source.
type Syncer struct {
	source  Source
	replica *Replica
	cfg     Config
	logger  *docstore.Logger

	mu    sync.Mutex
	state SyncState
}

// NewSyncer returns a Syncer feeding replica from source. A nil logger
// discards output.
func NewSyncer(source Source, replica *Replica, cfg Config, logger *docstore.Logger) (*Syncer, error) {
	if cfg.Shards == nil || cfg.Shards.Len() == 0 {
		return nil, fmt.Errorf("vecsync: no shards configured")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = docstore.NoopLogger()
	}
	return &Syncer{
		source:  source,
		replica: replica,
		cfg:     cfg,
		logger:  logger,
		state:   SyncState{Shards: cfg.Shards.String()},
	}, nil
}

// State returns a copy of the sync state.
func (s *Syncer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sync brings the replica up to date. The first successful call seeds it
// from the snapshot and adopts the snapshot timestamp as watermark; every
// call then applies the delta after the watermark.
//
// Rows removed by hard deletes are not visible to deltas; replicas drop them
// only when reseeded from a newer snapshot.
func (s *Syncer) Sync(ctx context.Context) (SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	if !s.state.SnapshotLoaded {
		ts, err := s.source.SnapshotTimestamp(ctx)
		if err != nil {
			return s.state, fmt.Errorf("vecsync: snapshot timestamp: %w", err)
		}
		it, err := s.source.Snapshot(ctx, s.cfg.Shards)
		if err != nil {
			return s.state, fmt.Errorf("vecsync: open snapshot: %w", err)
		}
		n, err := s.replica.ApplySnapshot(it, ts)
		if err != nil {
			return s.state, fmt.Errorf("vecsync: apply snapshot: %w", err)
		}
		s.logger.InfoContext(ctx, "replica seeded from snapshot", "shards", s.state.Shards, "entries", n, "snapshot_timestamp", ts)
		s.state.SnapshotLoaded = true
		applied += n
	}

	it, err := s.source.Delta(ctx, s.cfg.Shards, s.replica.Watermark())
	if err != nil {
		return s.state, fmt.Errorf("vecsync: open delta: %w", err)
	}
	n, err := s.replica.ApplyDelta(it)
	applied += n
	s.state.Watermark = s.replica.Watermark()
	if err != nil {
		return s.state, fmt.Errorf("vecsync: apply delta: %w", err)
	}
	s.state.Applied = applied
	s.state.UpdatedAt = time.Now()
	s.logger.DebugContext(ctx, "replica synced", "shards", s.state.Shards, "applied", applied, "watermark", s.state.Watermark)
	return s.state, nil
}

// Run calls Sync every Config.Interval until ctx is done. Failed syncs are
// logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "replica sync failed", "shards", s.state.Shards, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
