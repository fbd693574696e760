package vptree

import (
	"container/heap"
	"math"
	"sort"

	"github.com/viant/sqlite-docstore/index"
	"github.com/viant/sqlite-docstore/index/bruteforce"
	"github.com/viant/sqlite-docstore/vector"
)

var _ index.Index = (*Index)(nil)

// slack widens pruning bounds to absorb float32 rounding.
const slack = 1e-4

// Index is a VP-tree over unit vectors. It shares the brute-force binary
// format.
type Index struct {
	flat *bruteforce.Index
	unit [][]float32
	root *node
}

type node struct {
	idx     int
	radius  float32
	inside  *node
	outside *node
}

// New builds an index over ids and vectors.
func New(ids []string, vectors [][]float32) (*Index, error) {
	i := &Index{}
	if err := i.Build(ids, vectors); err != nil {
		return nil, err
	}
	return i, nil
}

// Build replaces the indexed content. Zero vectors are kept but never
// returned by Query.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	flat, err := bruteforce.New(ids, vectors)
	if err != nil {
		return err
	}
	unit := make([][]float32, len(vectors))
	items := make([]int, 0, len(vectors))
	for j, v := range vectors {
		u := vector.Normalize(v)
		if u == nil {
			continue
		}
		unit[j] = u
		items = append(items, j)
	}
	i.flat, i.unit = flat, unit
	i.root = i.build(items)
	return nil
}

func (i *Index) distance(a, b []float32) float32 {
	return vector.Euclidean(a, b)
}

func (i *Index) build(items []int) *node {
	if len(items) == 0 {
		return nil
	}
	vp := items[len(items)-1]
	rest := items[:len(items)-1]
	n := &node{idx: vp}
	if len(rest) == 0 {
		return n
	}
	dists := make(map[int]float32, len(rest))
	for _, j := range rest {
		dists[j] = i.distance(i.unit[vp], i.unit[j])
	}
	sort.Slice(rest, func(a, b int) bool { return dists[rest[a]] < dists[rest[b]] })
	mid := len(rest) / 2
	n.radius = dists[rest[mid]]
	// every inside point is within radius of vp, every outside point at
	// least radius away
	n.inside = i.build(append([]int(nil), rest[:mid+1]...))
	n.outside = i.build(append([]int(nil), rest[mid+1:]...))
	return n
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int {
	if i.flat == nil {
		return 0
	}
	return i.flat.Len()
}

type candidate struct {
	idx  int
	dist float32
}

// candidates is a max-heap on distance holding the best k so far.
type candidates []candidate

func (h candidates) Len() int           { return len(h) }
func (h candidates) Less(a, b int) bool { return h[a].dist > h[b].dist }
func (h candidates) Swap(a, b int)      { h[a], h[b] = h[b], h[a] }
func (h *candidates) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidates) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// Query returns the top k ids by cosine similarity, best first, with ties
// broken by id. k <= 0 returns every non-zero vector.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if i.flat == nil || i.flat.Len() == 0 || i.flat.Dim() == 0 {
		return nil, nil, nil
	}
	if len(query) != i.flat.Dim() {
		// delegate for a consistent error
		return i.flat.Query(query, k)
	}
	q := vector.Normalize(query)
	if q == nil {
		return nil, nil, nil
	}
	limit := k
	if limit <= 0 {
		limit = math.MaxInt
	}
	best := &candidates{}
	tau := func() float32 {
		if best.Len() < limit {
			return float32(math.Inf(1))
		}
		return (*best)[0].dist
	}
	var visit func(n *node)
	visit = func(n *node) {
		if n == nil {
			return
		}
		d := i.distance(q, i.unit[n.idx])
		if d < tau() {
			heap.Push(best, candidate{idx: n.idx, dist: d})
			if best.Len() > limit {
				heap.Pop(best)
			}
		}
		first, second := n.inside, n.outside
		if d >= n.radius {
			first, second = second, first
		}
		for _, child := range []*node{first, second} {
			if child == nil {
				continue
			}
			if child == n.inside && d-n.radius > tau()+slack {
				continue
			}
			if child == n.outside && n.radius-d > tau()+slack {
				continue
			}
			visit(child)
		}
	}
	visit(i.root)

	ids, vecs := i.flat.Items()
	hits := make([]candidate, best.Len())
	copy(hits, *best)
	scores := make(map[int]float64, len(hits))
	for _, h := range hits {
		scores[h.idx] = vector.Cosine(query, vecs[h.idx])
	}
	sort.Slice(hits, func(a, b int) bool {
		sa, sb := scores[hits[a].idx], scores[hits[b].idx]
		if sa != sb {
			return sa > sb
		}
		return ids[hits[a].idx] < ids[hits[b].idx]
	})
	outIDs := make([]string, len(hits))
	outScores := make([]float64, len(hits))
	for n, h := range hits {
		outIDs[n] = ids[h.idx]
		outScores[n] = scores[h.idx]
	}
	return outIDs, outScores, nil
}

// MarshalBinary encodes the indexed vectors in the brute-force format.
func (i *Index) MarshalBinary() ([]byte, error) {
	if i.flat == nil {
		return (&bruteforce.Index{}).MarshalBinary()
	}
	return i.flat.MarshalBinary()
}

// UnmarshalBinary decodes the brute-force format and rebuilds the tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	flat := &bruteforce.Index{}
	if err := flat.UnmarshalBinary(data); err != nil {
		return err
	}
	return i.Build(flat.Items())
}
