package shard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a set of shard ids. The zero value is not usable; use NewSet,
// Range or ParseSet.
type Set struct {
	bm *roaring.Bitmap
}

// NewSet returns a set holding ids. Negative ids are ignored.
func NewSet(ids ...int) *Set {
	s := &Set{bm: roaring.New()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Range returns the set [lo, hi).
func Range(lo, hi int) *Set {
	s := NewSet()
	if lo < 0 {
		lo = 0
	}
	if hi > lo {
		s.bm.AddRange(uint64(lo), uint64(hi))
	}
	return s
}

// ParseSet parses a comma-separated list of shard ids and inclusive ranges,
// e.g. "0,2,8-15".
func ParseSet(text string) (*Set, error) {
	s := NewSet()
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("shard: invalid range %q: %w", part, err)
			}
			to, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("shard: invalid range %q: %w", part, err)
			}
			if from < 0 || to < from {
				return nil, fmt.Errorf("shard: invalid range %q", part)
			}
			s.bm.AddRange(uint64(from), uint64(to)+1)
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("shard: invalid shard id %q: %w", part, err)
		}
		if id < 0 {
			return nil, fmt.Errorf("shard: negative shard id %d", id)
		}
		s.Add(id)
	}
	return s, nil
}

// Add inserts id into the set.
func (s *Set) Add(id int) {
	if id < 0 {
		return
	}
	s.bm.Add(uint32(id))
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id int) bool {
	if s == nil || id < 0 {
		return false
	}
	return s.bm.Contains(uint32(id))
}

// Len returns the number of shards in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// Slice returns the shard ids in ascending order.
func (s *Set) Slice() []int {
	if s == nil {
		return nil
	}
	out := make([]int, 0, s.Len())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// String renders the set in the format accepted by ParseSet, collapsing
// consecutive ids into ranges.
func (s *Set) String() string {
	ids := s.Slice()
	var parts []string
	for i := 0; i < len(ids); {
		j := i
		for j+1 < len(ids) && ids[j+1] == ids[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", ids[i], ids[j]))
		} else {
			parts = append(parts, strconv.Itoa(ids[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}
