package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-docstore/schema"
	"github.com/viant/sqlite-docstore/shard"
)

func TestSnapshotMissing(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))

	c, err := s.Snapshot(ctx, shard.Range(0, 4))
	require.NoError(t, err)
	assert.Empty(t, collect(t, c))

	size, err := s.SnapshotSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)

	ts, err := s.SnapshotTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	ts, err = s.DataTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestSnapshotShardFilter(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	// with 4 partitions: a -> 3, b -> 1, c -> 2
	require.NoError(t, s.Add(ctx, docs("a", "b", "c")))
	require.NoError(t, s.CreateSnapshot(ctx))

	c, err := s.Snapshot(ctx, shard.NewSet(0, 1))
	require.NoError(t, err)
	entries := collect(t, c)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, []float64{1.5, -1}, entries[0].Embedding)

	c, err = s.Snapshot(ctx, shard.Range(0, 4))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(collect(t, c)))

	c, err = s.Snapshot(ctx, shard.NewSet())
	require.NoError(t, err)
	assert.Empty(t, collect(t, c))

	size, err := s.SnapshotSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
}

func TestSnapshotIsPointInTime(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	require.NoError(t, s.Add(ctx, docs("a", "b")))
	require.NoError(t, s.CreateSnapshot(ctx))

	snapTS, err := s.SnapshotTimestamp(ctx)
	require.NoError(t, err)
	dataTS, err := s.DataTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, dataTS, snapTS)

	require.NoError(t, s.Add(ctx, docs("c")))
	size, err := s.SnapshotSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)

	later, err := s.DataTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, later.After(snapTS))

	// a second snapshot replaces the first
	require.NoError(t, s.CreateSnapshot(ctx))
	size, err = s.SnapshotSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)
}

func TestDelta(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	all := shard.Range(0, 4)

	require.NoError(t, s.Add(ctx, docs("a", "b", "c", "d")))
	require.NoError(t, s.CreateSnapshot(ctx))
	since, err := s.SnapshotTimestamp(ctx)
	require.NoError(t, err)

	c, err := s.Delta(ctx, all, since)
	require.NoError(t, err)
	assert.Empty(t, collect(t, c))

	_, err = s.Update(ctx, []Document{{ID: "b", Embedding: []float64{7}}})
	require.NoError(t, err)
	_, err = s.Delete(ctx, []string{"c"}, true)
	require.NoError(t, err)
	_, err = s.Delete(ctx, []string{"d"}, false)
	require.NoError(t, err)

	c, err = s.Delta(ctx, all, since)
	require.NoError(t, err)
	entries := collect(t, c)
	require.Equal(t, []string{"b", "c"}, ids(entries))
	assert.Equal(t, []float64{7}, entries[0].Embedding)
	assert.False(t, entries[0].Tombstone)
	assert.True(t, entries[0].LastUpdated.After(since))
	assert.True(t, entries[1].Tombstone)
	assert.Nil(t, entries[1].Embedding)

	// b lives in shard 1 only
	c, err = s.Delta(ctx, shard.NewSet(1), since)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(collect(t, c)))

	c, err = s.Delta(ctx, all, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(collect(t, c)))
}

func TestWriteTimestampsIncrease(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	var last time.Time
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(ctx, docs(id)))
		ts, err := s.DataTimestamp(ctx)
		require.NoError(t, err)
		assert.True(t, ts.After(last))
		last = ts
	}
}

func TestSnapshotLargeShardSet(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Partitions = 40000
	s := openStore(t, cfg)
	require.NoError(t, s.Add(ctx, docs("a", "b", "c")))
	require.NoError(t, s.CreateSnapshot(ctx))

	all := shard.Range(0, cfg.Partitions)
	c, err := s.Snapshot(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(collect(t, c)))

	c, err = s.Delta(ctx, all, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(collect(t, c)))
}

func TestSnapshotRebuildsEmptyTable(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, testConfig(t))
	require.NoError(t, s.Add(ctx, docs("a", "b")))
	// a copy that never ran leaves the snapshot table created but empty
	require.NoError(t, schema.CreateTable(ctx, s.pool.DB(), s.cfg.SnapshotTable))

	size, err := s.SnapshotSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)
	c, err := s.Snapshot(ctx, shard.Range(0, 4))
	require.NoError(t, err)
	assert.Empty(t, collect(t, c))
	ts, err := s.SnapshotTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	require.NoError(t, s.CreateSnapshot(ctx))
	size, err = s.SnapshotSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)
	c, err = s.Snapshot(ctx, shard.Range(0, 4))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(collect(t, c)))
}
