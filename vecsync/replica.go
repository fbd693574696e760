package vecsync

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viant/sqlite-docstore/docstore"
	"github.com/viant/sqlite-docstore/index"
	"github.com/viant/sqlite-docstore/index/bruteforce"
	"github.com/viant/sqlite-docstore/index/vptree"
	"github.com/viant/sqlite-docstore/vector"
)

// Iterator is the streaming contract of store cursors and dump readers.
type Iterator interface {
	Next() bool
	Entry() docstore.Entry
	Err() error
	Close() error
}

// Replica is a concurrent in-memory id to embedding map with a lazily
// rebuilt kNN index. Reads and writes may run concurrently; Query sees every
// write that completed before it started.
type Replica struct {
	vectors   atomic.Pointer[xsync.MapOf[string, []float32]]
	watermark atomic.Int64
	dirty     atomic.Bool

	mu    sync.Mutex
	index index.Index
}

// IndexKind selects the kNN index of a replica.
type IndexKind string

const (
	// BruteForce scores every vector on each query.
	BruteForce IndexKind = "bruteforce"
	// VPTree prunes with a vantage-point tree; rebuilds cost more.
	VPTree IndexKind = "vptree"
)

// NewIndex returns an empty index of the given kind.
func NewIndex(kind IndexKind) (index.Index, error) {
	switch kind {
	case BruteForce, "":
		return &bruteforce.Index{}, nil
	case VPTree:
		return &vptree.Index{}, nil
	default:
		return nil, fmt.Errorf("vecsync: unknown index kind %q", kind)
	}
}

// NewReplica returns an empty replica answering queries with idx. A nil idx
// selects the brute-force index.
func NewReplica(idx index.Index) *Replica {
	if idx == nil {
		idx = &bruteforce.Index{}
	}
	r := &Replica{index: idx}
	r.vectors.Store(xsync.NewMapOf[string, []float32]())
	return r
}

// ApplySnapshot replaces the replica content with the entries of it and
// sets the watermark to ts. On error the previous content is kept.
// Entries without an embedding are skipped.
func (r *Replica) ApplySnapshot(it Iterator, ts time.Time) (int, error) {
	defer it.Close()
	next := xsync.NewMapOf[string, []float32]()
	n := 0
	for it.Next() {
		e := it.Entry()
		if e.Tombstone || e.Embedding == nil {
			continue
		}
		next.Store(e.ID, vector.ToFloat32(e.Embedding))
		n++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	r.vectors.Store(next)
	r.watermark.Store(ts.UnixNano())
	r.dirty.Store(true)
	return n, nil
}

// ApplyDelta upserts the entries of it; tombstones and entries without an
// embedding remove their id. The watermark advances to the latest
// LastUpdated seen. Entries applied before an error are kept.
func (r *Replica) ApplyDelta(it Iterator) (int, error) {
	defer it.Close()
	vectors := r.vectors.Load()
	n := 0
	for it.Next() {
		e := it.Entry()
		if e.Tombstone || e.Embedding == nil {
			vectors.Delete(e.ID)
		} else {
			vectors.Store(e.ID, vector.ToFloat32(e.Embedding))
		}
		r.advance(e.LastUpdated)
		r.dirty.Store(true)
		n++
	}
	return n, it.Err()
}

func (r *Replica) advance(ts time.Time) {
	if ts.IsZero() {
		return
	}
	ns := ts.UnixNano()
	for {
		cur := r.watermark.Load()
		if ns <= cur || r.watermark.CompareAndSwap(cur, ns) {
			return
		}
	}
}

// Watermark returns the latest applied last_updated, zero before the first
// apply.
func (r *Replica) Watermark() time.Time {
	ns := r.watermark.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Get returns the embedding of id.
func (r *Replica) Get(id string) ([]float32, bool) {
	return r.vectors.Load().Load(id)
}

// Len returns the number of embeddings held.
func (r *Replica) Len() int { return r.vectors.Load().Size() }

// Query returns the k ids most similar to vec by cosine similarity.
func (r *Replica) Query(vec []float32, k int) ([]string, []float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirty.Swap(false) {
		if err := r.rebuild(); err != nil {
			r.dirty.Store(true)
			return nil, nil, err
		}
	}
	return r.index.Query(vec, k)
}

func (r *Replica) rebuild() error {
	vectors := r.vectors.Load()
	ids := make([]string, 0, vectors.Size())
	vectors.Range(func(id string, _ []float32) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	vecs := make([][]float32, 0, len(ids))
	kept := ids[:0]
	for _, id := range ids {
		if v, ok := vectors.Load(id); ok {
			kept = append(kept, id)
			vecs = append(vecs, v)
		}
	}
	return r.index.Build(kept, vecs)
}
