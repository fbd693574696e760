package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/viant/sqlite-docstore/engine"
	"github.com/viant/sqlite-docstore/pool"
	"github.com/viant/sqlite-docstore/schema"
	"github.com/viant/sqlite-docstore/shard"
)

// Store is a sharded document table with snapshot support. It is safe for
// concurrent use; every operation runs in its own transaction on a pooled
// connection.
type Store struct {
	cfg     Config
	pool    *pool.Pool
	codec   Codec
	logger  *Logger
	metrics *storeMetrics
	clock   *clock
	closed  atomic.Bool
}

// New opens the store described by cfg. Unless cfg.DryRun is set it opens the
// database and runs the schema version guard; a missing or mismatching
// schema version is returned as a KindFatal error and no store is returned.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.codec == nil {
		o.codec = JSONCodec{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "new", Err: err}
	}
	cfg.applyDefaults()

	s := &Store{
		cfg:     cfg,
		codec:   o.codec,
		logger:  o.logger.WithTable(cfg.Table),
		metrics: newStoreMetrics(o.metrics, cfg.Table),
		clock:   newClock(),
	}
	if cfg.DryRun {
		s.logger.InfoContext(ctx, "store started in dry run mode; it will not connect to the database. Restart with DryRun=false to connect")
		return s, nil
	}

	if err := engine.RegisterFunctions(); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "new", Err: err}
	}
	db, err := engine.OpenFile(cfg.Database, engine.Options{BusyTimeout: cfg.BusyTimeout, WAL: true})
	if err != nil {
		return nil, classify("new", fmt.Errorf("%w: %w", pool.ErrUnavailable, err))
	}
	p, err := pool.New(db, pool.Options{MaxConnections: cfg.MaxConnections, AcquireTimeout: cfg.AcquireTimeout})
	if err != nil {
		_ = db.Close()
		return nil, &Error{Kind: KindFatal, Op: "new", Err: err}
	}
	s.pool = p

	exists, err := s.tableExists(ctx, cfg.Table)
	if err != nil {
		_ = p.Close()
		return nil, classify("new", err)
	}
	if err := schema.NewGuard(p, cfg.Table).Ensure(ctx); err != nil {
		_ = p.Close()
		return nil, classify("new", err)
	}
	if exists {
		s.logger.InfoContext(ctx, "using existing table")
	} else {
		s.logger.InfoContext(ctx, "created table", "schema_version", schema.Version)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// Initialized reports whether the store holds a database connection pool.
func (s *Store) Initialized() bool { return s.pool != nil && !s.closed.Load() }

// Close releases the connection pool.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// WritePrometheus writes the store metrics in Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) { s.metrics.write(w) }

// ready rejects operations on a closed or dry run store. The error is not
// tagged: neither state is a startup failure nor goes away on retry.
func (s *Store) ready(op string) error {
	if s.closed.Load() {
		return fmt.Errorf("docstore: %s: %w", op, ErrClosed)
	}
	if s.pool == nil {
		return fmt.Errorf("docstore: %s: %w", op, ErrDryRun)
	}
	return nil
}

// tx runs fn in a transaction, recording metrics and tagging errors.
func (s *Store) tx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if err := s.ready(op); err != nil {
		return err
	}
	start := time.Now()
	err := s.pool.Tx(ctx, fn)
	s.metrics.observe(op, start, err)
	return classify(op, err)
}

// lockForWrite takes the database write lock before the clock is read, so
// that last_updated values follow commit order.
func (s *Store) lockForWrite(ctx context.Context, tx *sql.Tx) (int64, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE `+s.cfg.Table+` SET shard = shard WHERE 0`); err != nil {
		return 0, err
	}
	return s.clock.Next(), nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()
	return schema.TableExists(ctx, conn, name)
}

type row struct {
	id        string
	embedding []byte
	payload   []byte
}

func (s *Store) encode(docs []Document) ([]row, error) {
	rows := make([]row, len(docs))
	for i, doc := range docs {
		payload, err := s.codec.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode %q: %w", doc.ID, err)
		}
		embedding, err := s.cfg.DumpDType.Encode(doc.Embedding)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode embedding of %q: %w", doc.ID, err)
		}
		rows[i] = row{id: doc.ID, embedding: embedding, payload: payload}
	}
	return rows, nil
}

// Add inserts docs in one transaction. Shards are computed from the ids and
// last_updated is set to the transaction time. If any id already exists the
// whole batch is rolled back: the conflict is logged (unless
// MuteUniqueWarnings is set) and Add returns nil.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows, err := s.encode(docs)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + s.cfg.Table + ` (doc_id, embedding, doc, shard, last_updated) VALUES (?, ?, ?, ?, ?)`
	err = s.tx(ctx, "add", func(tx *sql.Tx) error {
		ts, err := s.lockForWrite(ctx, tx)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.id, r.embedding, r.payload, shard.For(r.id, s.cfg.Partitions), ts); err != nil {
				return err
			}
		}
		return nil
	})
	if k, ok := KindOf(err); ok && k == KindConflict {
		s.metrics.conflict()
		if !s.cfg.MuteUniqueWarnings {
			s.logger.LogConflict(ctx, len(docs), docs[0].ID, docs[len(docs)-1].ID, errors.Unwrap(err))
		}
		return nil
	}
	if err == nil {
		s.metrics.rows("add", len(rows))
	}
	return err
}

// Update overwrites embedding, payload and last_updated of existing ids in
// one transaction and returns the number of rows changed. Shards are left
// untouched. Ids that do not exist are skipped silently: Update never
// inserts.
func (s *Store) Update(ctx context.Context, docs []Document) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	rows, err := s.encode(docs)
	if err != nil {
		return 0, err
	}
	query := `UPDATE ` + s.cfg.Table + ` SET embedding = ?, doc = ?, last_updated = ? WHERE doc_id = ?`
	var changed int64
	err = s.tx(ctx, "update", func(tx *sql.Tx) error {
		ts, err := s.lockForWrite(ctx, tx)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			res, err := stmt.ExecContext(ctx, r.embedding, r.payload, ts, r.id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Delete removes ids in one transaction and returns the number of rows
// affected. With soft set, rows are kept as tombstones: embedding and
// payload are set to NULL and last_updated is refreshed so that Delta
// reports the deletion. Tombstones are removed by Cleanup.
func (s *Store) Delete(ctx context.Context, ids []string, soft bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	op := "delete"
	if soft {
		op = "soft_delete"
		s.logger.WarnContext(ctx, "performing soft delete; use Cleanup or a hard delete to remove the records", "count", len(ids))
	}
	var affected int64
	err := s.tx(ctx, op, func(tx *sql.Tx) error {
		ts, err := s.lockForWrite(ctx, tx)
		if err != nil {
			return err
		}
		query := `DELETE FROM ` + s.cfg.Table + ` WHERE doc_id = ?`
		if soft {
			query = `UPDATE ` + s.cfg.Table + ` SET embedding = NULL, doc = NULL, last_updated = ? WHERE doc_id = ?`
		}
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			var res sql.Result
			if soft {
				res, err = stmt.ExecContext(ctx, ts, id)
			} else {
				res, err = stmt.ExecContext(ctx, id)
			}
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// Search looks up ids and returns a slice aligned with ids. Entries are nil
// for ids that do not exist or are tombstoned. When includeEmbeddings is set
// stored embeddings are decoded with the configured dtype.
func (s *Store) Search(ctx context.Context, ids []string, includeEmbeddings bool) ([]*Document, error) {
	out := make([]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	columns := "doc"
	if includeEmbeddings {
		columns = "doc, embedding"
	}
	query := `SELECT ` + columns + ` FROM ` + s.cfg.Table + ` WHERE doc_id = ?`
	err := s.tx(ctx, "search", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, id := range ids {
			var payload, embedding []byte
			dest := []any{&payload}
			if includeEmbeddings {
				dest = append(dest, &embedding)
			}
			err := stmt.QueryRowContext(ctx, id).Scan(dest...)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if payload == nil {
				continue
			}
			doc, err := s.codec.Unmarshal(payload)
			if err != nil {
				return fmt.Errorf("docstore: decode %q: %w", id, err)
			}
			if doc.ID == "" {
				doc.ID = id
			}
			if includeEmbeddings && embedding != nil {
				if doc.Embedding, err = s.cfg.DumpDType.Decode(embedding); err != nil {
					return fmt.Errorf("docstore: decode embedding of %q: %w", id, err)
				}
			}
			out[i] = &doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cleanup physically removes tombstones and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	return s.exec(ctx, "cleanup", `DELETE FROM `+s.cfg.Table+` WHERE doc IS NULL`)
}

// Clear removes every row of the primary table.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.exec(ctx, "clear", `DELETE FROM `+s.cfg.Table)
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := s.tx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// Size returns the number of rows, tombstones included.
func (s *Store) Size(ctx context.Context) (int64, error) {
	return s.count(ctx, "size", s.cfg.Table)
}

func (s *Store) count(ctx context.Context, op, table string) (int64, error) {
	var n int64
	err := s.tx(ctx, op, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	})
	return n, err
}

// VerifyShards returns the ids whose stored shard differs from the shard
// recomputed from the id, in id order. A non-empty result means the table
// was written with a different partition count.
func (s *Store) VerifyShards(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT doc_id FROM ` + s.cfg.Table + ` WHERE shard != ` + engine.ShardFunction + `(doc_id, ?) ORDER BY doc_id`
	err := s.tx(ctx, "verify_shards", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, s.cfg.Partitions)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// Scan streams every row of the primary table in id order, tombstones
// included. Payloads are returned only when includePayload is set.
func (s *Store) Scan(ctx context.Context, includePayload bool) (*Cursor, error) {
	columns := "doc_id, embedding, last_updated, doc IS NULL"
	if includePayload {
		columns += ", doc"
	}
	base := `SELECT ` + columns + ` FROM ` + s.cfg.Table
	fetch := func(ctx context.Context, tx *sql.Tx, after string, first bool, limit int) ([]Entry, error) {
		query, args := base, []any{}
		if !first {
			query += ` WHERE doc_id > ?`
			args = append(args, after)
		}
		query += ` ORDER BY doc_id LIMIT ?`
		args = append(args, limit)
		return s.queryEntries(ctx, tx, query, args, true, includePayload)
	}
	return s.openCursor(ctx, "scan", "", fetch)
}

// openCursor starts a read transaction for a stream. When requireTable is
// set and the table does not exist, a warning is logged and an empty cursor
// is returned.
func (s *Store) openCursor(ctx context.Context, stream, requireTable string, fetch fetchFunc) (*Cursor, error) {
	if err := s.ready(stream); err != nil {
		return nil, err
	}
	lease, err := s.pool.Begin(ctx, nil)
	if err != nil {
		return nil, classify(stream, err)
	}
	if requireTable != "" {
		exists, err := schema.TableExists(ctx, lease.Tx, requireTable)
		if err != nil {
			_ = lease.Rollback()
			return nil, classify(stream, err)
		}
		if !exists {
			_ = lease.Rollback()
			s.logger.WarnContext(ctx, "table does not exist, returning empty stream", "stream", stream, "missing", requireTable)
			return emptyCursor(), nil
		}
	}
	return &Cursor{
		ctx:    ctx,
		store:  s,
		stream: stream,
		lease:  lease,
		fetch:  fetch,
		limit:  s.cfg.BatchSize,
	}, nil
}

// queryEntries runs query and scans doc_id, embedding and, depending on the
// flags, last_updated, the tombstone flag and the payload.
func (s *Store) queryEntries(ctx context.Context, tx *sql.Tx, query string, args []any, withMeta, withPayload bool) ([]Entry, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			embedding []byte
			updated   int64
		)
		dest := []any{&e.ID, &embedding}
		if withMeta {
			dest = append(dest, &updated, &e.Tombstone)
		}
		if withPayload {
			dest = append(dest, &e.Payload)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if e.Embedding, err = s.cfg.DumpDType.Decode(embedding); err != nil {
			return nil, fmt.Errorf("docstore: decode embedding of %q: %w", e.ID, err)
		}
		e.LastUpdated = fromUnixNano(updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// readError tags a failed stream and keeps connectivity failures retryable.
func (s *Store) readError(op string, err error) error {
	err = classify(op, err)
	if IsTransient(err) {
		return err
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		err = tagged.Err
	}
	return &Error{Kind: KindWarning, Op: op, Err: err}
}

// shardFilter renders a shard membership test for set. The ids are bound
// as one JSON array so large sets stay under the SQLite variable limit.
func shardFilter(set *shard.Set) (string, []any) {
	ids, _ := json.Marshal(set.Slice())
	return `shard IN (SELECT value FROM json_each(?))`, []any{string(ids)}
}
