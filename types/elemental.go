package types

import (
	"fmt"
	"math"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

// FaceKey identifies a triangular face by its sorted vertex triple. Edges of
// 2D meshes use -1 in the last slot.
type FaceKey [3]int

func NewFaceKey(verts ...int) (fk FaceKey) {
	fk = FaceKey{-1, -1, -1}
	copy(fk[:], verts)
	// Insertion sort, with -1 kept last
	less := func(a, b int) bool {
		if a == -1 {
			return false
		}
		if b == -1 {
			return true
		}
		return a < b
	}
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && less(fk[j], fk[j-1]); j-- {
			fk[j], fk[j-1] = fk[j-1], fk[j]
		}
	}
	return
}
