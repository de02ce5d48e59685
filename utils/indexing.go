package utils

import (
	"fmt"
	"hash/fnv"
	"sort"
)

type Index []int

func NewRange(rmin, rmax int) (r Index) {
	var (
		size = rmax - rmin + 1 // INCLUSIVE RANGE
	)
	if size <= 0 {
		return Index{}
	}
	r = make(Index, size)
	for i := range r {
		r[i] = i + rmin
	}
	return
}

// NewSorted returns the distinct values of vals in ascending order.
func NewSorted(vals []int) (r Index) {
	r = make(Index, 0, len(vals))
	seen := make(map[int]struct{}, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		r = append(r, v)
	}
	sort.Ints(r)
	return
}

// Inverse maps each value of I in [0, n) to its position in I, -1 elsewhere.
func (I Index) Inverse(n int) (pos []int, err error) {
	pos = make([]int, n)
	for i := range pos {
		pos[i] = -1
	}
	for i, val := range I {
		switch {
		case val < 0 || val >= n:
			err = fmt.Errorf("index value out of range [0,%d): %d at position %d", n, val, i)
			return
		case pos[val] != -1:
			err = fmt.Errorf("duplicate index value %d at positions %d and %d", val, pos[val], i)
			return
		}
		pos[val] = i
	}
	return
}

// Checksum is a stable hash of the index contents, used to check that
// collective callers pass matching index sets.
func (I Index) Checksum() uint64 {
	h := fnv.New64a()
	var b [8]byte
	for _, val := range I {
		u := uint64(val)
		for k := 0; k < 8; k++ {
			b[k] = byte(u >> (8 * k))
		}
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}
