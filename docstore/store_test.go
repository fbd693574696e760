package docstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-docstore/engine"
	"github.com/viant/sqlite-docstore/schema"
	"github.com/viant/sqlite-docstore/shard"
	"github.com/viant/sqlite-docstore/vector"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Database:       filepath.Join(t.TempDir(), "docs.sqlite"),
		Table:          "docs",
		Partitions:     4,
		MaxConnections: 4,
		BatchSize:      2,
	}
}

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func docs(ids ...string) []Document {
	out := make([]Document, len(ids))
	for i, id := range ids {
		out[i] = Document{ID: id, Content: "content " + id, Embedding: []float64{float64(i) + 0.5, -1}}
	}
	return out
}

func collect(t *testing.T, c *Cursor) []Entry {
	t.Helper()
	var out []Entry
	for c.Next() {
		out = append(out, c.Entry())
	}
	require.NoError(t, c.Err())
	return out
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestNewCreatesTable(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg)
	assert.True(t, s.Initialized())
	assert.Equal(t, "docs_snapshot", s.Config().SnapshotTable)

	size, err := s.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)
	require.NoError(t, s.Close())
	assert.False(t, s.Initialized())

	// reopening an existing, correctly versioned table succeeds
	again := openStore(t, cfg)
	assert.True(t, again.Initialized())
}

func TestNewVersionMismatch(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg)
	require.NoError(t, s.Close())

	db, err := engine.OpenFile(cfg.Database, engine.Options{})
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE `+schema.RegistryTable+` SET schema_version = 1 WHERE table_name = ?`, cfg.Table)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, IsFatal(err), "got %v", err)
	var verr *schema.VersionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Stored)
	assert.Contains(t, err.Error(), "migrate")
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Table = "bad table"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestDryRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.DryRun = true
	s := openStore(t, cfg)
	assert.False(t, s.Initialized())

	err := s.Add(context.Background(), docs("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDryRun))
	assert.False(t, IsFatal(err))
	_, err = s.Snapshot(context.Background(), shard.Range(0, 4))
	assert.True(t, errors.Is(err, ErrDryRun))
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	require.NoError(t, s.Close())
	assert.False(t, s.Initialized())

	_, err := s.Size(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClosed))
	_, ok := KindOf(err)
	assert.False(t, ok, "closed store error should not be tagged: %v", err)
	_, err = s.Delta(ctx, shard.Range(0, 4), time.Time{})
	assert.True(t, errors.Is(err, ErrClosed))
	assert.False(t, IsFatal(err))
	require.NoError(t, s.Close())
}

func TestAddSearch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))

	require.NoError(t, s.Add(ctx, docs("a", "b")))
	found, err := s.Search(ctx, []string{"a", "missing", "b"}, true)
	require.NoError(t, err)
	require.Len(t, found, 3)
	require.NotNil(t, found[0])
	assert.Nil(t, found[1])
	require.NotNil(t, found[2])
	assert.Equal(t, "content a", found[0].Content)
	assert.Equal(t, []float64{0.5, -1}, found[0].Embedding)
	assert.Equal(t, []float64{1.5, -1}, found[2].Embedding)

	found, err = s.Search(ctx, []string{"a"}, false)
	require.NoError(t, err)
	assert.Nil(t, found[0].Embedding)
}

func TestAddConflictRollsBackBatch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))

	require.NoError(t, s.Add(ctx, docs("a")))
	// "x" precedes the duplicate and must not survive the rollback
	require.NoError(t, s.Add(ctx, docs("x", "a")))

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
	found, err := s.Search(ctx, []string{"x"}, false)
	require.NoError(t, err)
	assert.Nil(t, found[0])

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `docstore_unique_conflicts_total{table="docs"} 1`)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	require.NoError(t, s.Add(ctx, docs("a")))

	changed, err := s.Update(ctx, []Document{
		{ID: "a", Content: "new", Embedding: []float64{9}},
		{ID: "missing", Content: "ignored"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	found, err := s.Search(ctx, []string{"a", "missing"}, true)
	require.NoError(t, err)
	assert.Equal(t, "new", found[0].Content)
	assert.Equal(t, []float64{9}, found[0].Embedding)
	assert.Nil(t, found[1])

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}

func TestDeleteSoftAndCleanup(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	require.NoError(t, s.Add(ctx, docs("a", "b", "c")))

	n, err := s.Delete(ctx, []string{"a", "missing"}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	found, err := s.Search(ctx, []string{"a"}, true)
	require.NoError(t, err)
	assert.Nil(t, found[0])
	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size, "tombstones are counted")

	n, err = s.Delete(ctx, []string{"b"}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	removed, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	size, err = s.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)

	removed, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestScanPaginates(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	require.NoError(t, s.Add(ctx, docs("e", "a", "d", "c", "b")))
	_, err := s.Delete(ctx, []string{"c"}, true)
	require.NoError(t, err)

	c, err := s.Scan(ctx, true)
	require.NoError(t, err)
	entries := collect(t, c)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(entries))
	for _, e := range entries {
		assert.False(t, e.LastUpdated.IsZero())
		if e.ID == "c" {
			assert.True(t, e.Tombstone)
			assert.Nil(t, e.Embedding)
			assert.Nil(t, e.Payload)
			continue
		}
		assert.False(t, e.Tombstone)
		assert.NotEmpty(t, e.Payload)
	}
	assert.False(t, c.Next())
	assert.NoError(t, c.Close())
}

func TestCursorCloseEarlyReleasesConnection(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = time.Second
	s := openStore(t, cfg)
	require.NoError(t, s.Add(ctx, docs("a", "b", "c")))

	c, err := s.Scan(ctx, false)
	require.NoError(t, err)
	require.True(t, c.Next())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.Next())

	// the only connection is free again
	_, err = s.Size(ctx)
	require.NoError(t, err)
}

func TestCursorCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	s := openStore(t, cfg)
	require.NoError(t, s.Add(context.Background(), docs("a", "b", "c", "d")))

	ctx, cancel := context.WithCancel(context.Background())
	c, err := s.Scan(ctx, false)
	require.NoError(t, err)
	require.True(t, c.Next())
	cancel()
	for c.Next() {
	}
	require.Error(t, c.Err())
	assert.True(t, IsTransient(c.Err()), "got %v", c.Err())
}

func TestVerifyShards(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	s := openStore(t, cfg)
	require.NoError(t, s.Add(ctx, docs("a", "b", "c", "d")))

	bad, err := s.VerifyShards(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.NoError(t, s.Close())

	cfg.Partitions = 7
	resharded := openStore(t, cfg)
	bad, err = resharded.VerifyShards(ctx)
	require.NoError(t, err)
	var want []string
	for _, id := range []string{"a", "b", "c", "d"} {
		if shard.For(id, 4) != shard.For(id, 7) {
			want = append(want, id)
		}
	}
	assert.Equal(t, want, bad)
}

func TestFloat32Embeddings(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.DumpDType = vector.Float32
	s := openStore(t, cfg)
	require.NoError(t, s.Add(ctx, []Document{{ID: "a", Embedding: []float64{0.25, 2}}}))

	found, err := s.Search(ctx, []string{"a"}, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 2}, found[0].Embedding)

	conn, err := s.pool.DB().Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	var blob []byte
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT embedding FROM docs WHERE doc_id = 'a'`).Scan(&blob))
	assert.Len(t, blob, 8)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("op", nil))
	plain := errors.New("plain")
	assert.Equal(t, plain, classify("op", plain))
	assert.True(t, IsTransient(classify("op", context.Canceled)))
	assert.True(t, IsFatal(classify("op", &schema.VersionError{Table: "t", Expected: 2})))

	tagged := &Error{Kind: KindWarning, Op: "x", Err: plain}
	assert.Equal(t, error(tagged), classify("op", tagged))
	assert.True(t, strings.HasPrefix(tagged.Error(), "docstore: x (warning)"))
}

func TestClassifySQLiteErrors(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	s := openStore(t, cfg)
	db := s.pool.DB()

	// statement errors are not worth retrying
	_, err := db.ExecContext(ctx, `SELECT * FROM no_such_table`)
	require.Error(t, err)
	_, ok := KindOf(classify("op", err))
	assert.False(t, ok, "logic error should stay untagged: %v", err)

	_, err = db.ExecContext(ctx, `INSERT INTO docs (doc_id, shard, last_updated) VALUES ('x', NULL, 0)`)
	require.Error(t, err)
	assert.False(t, IsTransient(classify("op", err)), "constraint error: %v", err)

	// a competing writer without busy timeout gets SQLITE_BUSY
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `UPDATE docs SET shard = shard WHERE 0`)
	require.NoError(t, err)

	other, err := engine.OpenFile(cfg.Database, engine.Options{})
	require.NoError(t, err)
	defer other.Close()
	_, err = other.ExecContext(ctx, `UPDATE docs SET shard = shard WHERE 0`)
	require.Error(t, err)
	assert.True(t, IsTransient(classify("op", err)), "busy error: %v", err)
}
