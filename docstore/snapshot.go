package docstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/viant/sqlite-docstore/schema"
	"github.com/viant/sqlite-docstore/shard"
)

const snapshotColumns = "doc_id, embedding, doc, shard, last_updated"

// CreateSnapshot replaces the snapshot table with a copy of the primary
// table. The first transaction drops and recreates the snapshot table, the
// second copies every row, tombstones included. A failed copy is rolled back,
// logged and returned, leaving an empty snapshot that the next call repairs.
func (s *Store) CreateSnapshot(ctx context.Context) error {
	snapshot := s.cfg.SnapshotTable
	err := s.tx(ctx, "create_snapshot", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema.DropTableDDL(snapshot)); err != nil {
			return err
		}
		return schema.CreateTable(ctx, tx, snapshot)
	})
	if err != nil {
		s.logger.LogSnapshot(ctx, snapshot, 0, err)
		return err
	}

	var copied int64
	err = s.tx(ctx, "copy_snapshot", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+snapshot+` (`+snapshotColumns+`) SELECT `+snapshotColumns+` FROM `+s.cfg.Table)
		if err != nil {
			return err
		}
		copied, err = res.RowsAffected()
		return err
	})
	s.logger.LogSnapshot(ctx, snapshot, copied, err)
	if err == nil {
		s.metrics.rows("create_snapshot", int(copied))
	}
	return err
}

// Snapshot streams id and embedding of the snapshot rows whose shard is in
// shards, in id order. Tombstones captured by the snapshot are included with
// a nil embedding. If no snapshot was created a warning is logged and the
// cursor is empty.
func (s *Store) Snapshot(ctx context.Context, shards *shard.Set) (*Cursor, error) {
	if err := s.ready("snapshot"); err != nil {
		return nil, err
	}
	if shards.Len() == 0 {
		return emptyCursor(), nil
	}
	filter, shardArgs := shardFilter(shards)
	base := `SELECT doc_id, embedding FROM ` + s.cfg.SnapshotTable + ` WHERE ` + filter
	fetch := func(ctx context.Context, tx *sql.Tx, after string, first bool, limit int) ([]Entry, error) {
		query := base
		args := append([]any{}, shardArgs...)
		if !first {
			query += ` AND doc_id > ?`
			args = append(args, after)
		}
		query += ` ORDER BY doc_id LIMIT ?`
		args = append(args, limit)
		return s.queryEntries(ctx, tx, query, args, false, false)
	}
	return s.openCursor(ctx, "snapshot", s.cfg.SnapshotTable, fetch)
}

// Delta streams the primary table rows changed strictly after since whose
// shard is in shards, in id order. Soft-deleted rows are reported as
// tombstones with a nil embedding.
func (s *Store) Delta(ctx context.Context, shards *shard.Set, since time.Time) (*Cursor, error) {
	if err := s.ready("delta"); err != nil {
		return nil, err
	}
	if shards.Len() == 0 {
		return emptyCursor(), nil
	}
	filter, shardArgs := shardFilter(shards)
	base := `SELECT doc_id, embedding, last_updated, doc IS NULL FROM ` + s.cfg.Table +
		` WHERE last_updated > ? AND ` + filter
	fetch := func(ctx context.Context, tx *sql.Tx, after string, first bool, limit int) ([]Entry, error) {
		query := base
		args := append([]any{toUnixNano(since)}, shardArgs...)
		if !first {
			query += ` AND doc_id > ?`
			args = append(args, after)
		}
		query += ` ORDER BY doc_id LIMIT ?`
		args = append(args, limit)
		return s.queryEntries(ctx, tx, query, args, true, false)
	}
	return s.openCursor(ctx, "delta", "", fetch)
}

// SnapshotTimestamp returns the latest last_updated captured by the
// snapshot, or the zero time when the snapshot is empty or missing.
func (s *Store) SnapshotTimestamp(ctx context.Context) (time.Time, error) {
	return s.maxUpdated(ctx, "snapshot_timestamp", s.cfg.SnapshotTable, true)
}

// DataTimestamp returns the latest last_updated of the primary table, or
// the zero time when it is empty.
func (s *Store) DataTimestamp(ctx context.Context) (time.Time, error) {
	return s.maxUpdated(ctx, "data_timestamp", s.cfg.Table, false)
}

func (s *Store) maxUpdated(ctx context.Context, op, table string, mayBeMissing bool) (time.Time, error) {
	var (
		ns      sql.NullInt64
		missing bool
	)
	err := s.tx(ctx, op, func(tx *sql.Tx) error {
		if mayBeMissing {
			exists, err := schema.TableExists(ctx, tx, table)
			if err != nil {
				return err
			}
			if !exists {
				missing = true
				return nil
			}
		}
		return tx.QueryRowContext(ctx, `SELECT MAX(last_updated) FROM `+table).Scan(&ns)
	})
	if err != nil {
		return time.Time{}, err
	}
	if missing {
		s.logger.WarnContext(ctx, "snapshot table does not exist", "snapshot", table)
		return time.Time{}, nil
	}
	if !ns.Valid {
		return time.Time{}, nil
	}
	return fromUnixNano(ns.Int64), nil
}

// SnapshotSize returns the number of rows in the snapshot table, or zero if
// it does not exist.
func (s *Store) SnapshotSize(ctx context.Context) (int64, error) {
	var n int64
	err := s.tx(ctx, "snapshot_size", func(tx *sql.Tx) error {
		exists, err := schema.TableExists(ctx, tx, s.cfg.SnapshotTable)
		if err != nil || !exists {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.cfg.SnapshotTable).Scan(&n)
	})
	return n, err
}
