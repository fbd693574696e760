package bruteforce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/viant/sqlite-docstore/index"
	"github.com/viant/sqlite-docstore/vector"
)

var _ index.Index = (*Index)(nil)

// Index is a brute-force cosine index. Vectors with zero magnitude are kept
// but never returned.
type Index struct {
	ids  []string
	vecs [][]float32
	mags []float32
	dim  int
}

// New builds an index over ids and vectors.
func New(ids []string, vectors [][]float32) (*Index, error) {
	i := &Index{}
	if err := i.Build(ids, vectors); err != nil {
		return nil, err
	}
	return i, nil
}

// Build loads ids and vectors. The slices are retained, not copied.
func (i *Index) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("bruteforce: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		i.ids, i.vecs, i.mags, i.dim = nil, nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	mags := make([]float32, len(vectors))
	for j, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("bruteforce: vector %q has dim %d, want %d", ids[j], len(v), dim)
		}
		mags[j] = vector.Magnitude(v)
	}
	i.ids, i.vecs, i.mags, i.dim = ids, vectors, mags, dim
	return nil
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Dim returns the vector dimension, zero when empty.
func (i *Index) Dim() int { return i.dim }

// Items returns the indexed ids and vectors. The slices are shared.
func (i *Index) Items() ([]string, [][]float32) { return i.ids, i.vecs }

type hit struct {
	idx   int
	score float64
}

// Query returns the top k ids by cosine similarity. Ties are broken by id.
func (i *Index) Query(query []float32, k int) ([]string, []float64, error) {
	if len(i.ids) == 0 || i.dim == 0 {
		return nil, nil, nil
	}
	if len(query) != i.dim {
		return nil, nil, fmt.Errorf("bruteforce: query dim %d != index dim %d", len(query), i.dim)
	}
	if vector.Magnitude(query) == 0 {
		return nil, nil, nil
	}
	hits := make([]hit, 0, len(i.vecs))
	for j, v := range i.vecs {
		if i.mags[j] == 0 {
			continue
		}
		s := vector.Cosine(query, v)
		if math.IsNaN(s) {
			continue
		}
		hits = append(hits, hit{idx: j, score: s})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return i.ids[hits[a].idx] < i.ids[hits[b].idx]
	})
	if k <= 0 || k > len(hits) {
		k = len(hits)
	}
	ids := make([]string, k)
	scores := make([]float64, k)
	for n, h := range hits[:k] {
		ids[n] = i.ids[h.idx]
		scores[n] = h.score
	}
	return ids, scores, nil
}

// MarshalBinary encodes dim and count as uint32, then per vector a uint32
// id length, the id and dim float32 values, all little-endian.
func (i *Index) MarshalBinary() ([]byte, error) {
	size := 8
	for _, id := range i.ids {
		size += 4 + len(id) + 4*i.dim
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(i.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(i.ids)))
	for j, id := range i.ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
		for _, v := range i.vecs[j] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}

var errTruncated = errors.New("bruteforce: truncated data")

// UnmarshalBinary restores an index encoded by MarshalBinary.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errTruncated
	}
	dim := int(binary.LittleEndian.Uint32(data))
	n := int(binary.LittleEndian.Uint32(data[4:]))
	data = data[8:]
	ids := make([]string, 0, n)
	vecs := make([][]float32, 0, n)
	for j := 0; j < n; j++ {
		if len(data) < 4 {
			return errTruncated
		}
		idLen := int(binary.LittleEndian.Uint32(data))
		data = data[4:]
		if len(data) < idLen+4*dim {
			return errTruncated
		}
		ids = append(ids, string(data[:idLen]))
		data = data[idLen:]
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(data))
			data = data[4:]
		}
		vecs = append(vecs, vec)
	}
	return i.Build(ids, vecs)
}
