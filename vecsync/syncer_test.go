package vecsync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/shard"
)

func newStore(t *testing.T) *docstore.Store {
	t.Helper()
	s, err := docstore.New(context.Background(), docstore.Config{
		Database:   filepath.Join(t.TempDir(), "sync.sqlite"),
		Table:      "docs",
		Partitions: 4,
		BatchSize:  2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSyncerFollowsStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	// with 4 partitions: a -> 3, b -> 1, c -> 2
	require.NoError(t, store.Add(ctx, []docstore.Document{
		{ID: "a", Embedding: []float64{1, 0}},
		{ID: "b", Embedding: []float64{0, 1}},
		{ID: "c", Embedding: []float64{1, 1}},
	}))
	require.NoError(t, store.CreateSnapshot(ctx))

	replica := NewReplica(nil)
	syncer, err := NewSyncer(StoreSource{Store: store}, replica, Config{Shards: shard.NewSet(1, 3)}, nil)
	require.NoError(t, err)

	state, err := syncer.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, state.SnapshotLoaded)
	assert.Equal(t, "1,3", state.Shards)
	assert.Equal(t, 2, replica.Len())
	snapTS, err := store.SnapshotTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapTS, state.Watermark)

	_, err = store.Update(ctx, []docstore.Document{{ID: "a", Embedding: []float64{5, 5}}})
	require.NoError(t, err)
	_, err = store.Delete(ctx, []string{"b"}, true)
	require.NoError(t, err)
	_, err = store.Update(ctx, []docstore.Document{{ID: "c", Embedding: []float64{9, 9}}})
	require.NoError(t, err)

	state, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Applied)
	assert.Equal(t, 1, replica.Len())
	v, ok := replica.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{5, 5}, v)
	_, ok = replica.Get("c")
	assert.False(t, ok, "c is owned by another replica")

	dataTS, err := store.DataTimestamp(ctx)
	require.NoError(t, err)
	// c's update is the latest write but lives outside the replica shards
	assert.True(t, state.Watermark.Before(dataTS))

	state, err = syncer.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Applied)
}

func TestNewSyncerRequiresShards(t *testing.T) {
	_, err := NewSyncer(StoreSource{}, NewReplica(nil), Config{}, nil)
	assert.Error(t, err)
}
