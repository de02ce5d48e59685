package mesh

import (
	"fmt"
	"math"
)

// Boundary flags assigned by the structured generators, one per box side.
const (
	XMinFlag = 101 + iota
	XMaxFlag
	YMinFlag
	YMaxFlag
	ZMinFlag
	ZMaxFlag
)

// Box is an axis aligned block split into N cells per direction.
type Box struct {
	N        [3]int
	Min, Max [3]float64
}

// UnitBox returns the unit square (dim 2) or unit cube (dim 3) with n cells
// per direction.
func UnitBox(dim, n int) Box {
	b := Box{N: [3]int{n, n, 1}, Max: [3]float64{1, 1, 0}}
	if dim == 3 {
		b.N[2] = n
		b.Max[2] = 1
	}
	return b
}

// FlagFunc assigns a sub-domain flag from an element centroid.
type FlagFunc func(centroid [3]float64) int

func UniformFlag(flag int) FlagFunc {
	return func([3]float64) int { return flag }
}

// SplitFlag assigns left to elements with centroid x <= x0 and right otherwise.
func SplitFlag(x0 float64, left, right int) FlagFunc {
	return func(c [3]float64) int {
		if c[0] <= x0 {
			return left
		}
		return right
	}
}

func (b Box) check(dim int) error {
	for i := 0; i < dim; i++ {
		if b.N[i] < 1 {
			return fmt.Errorf("box needs at least one cell per direction, have %v", b.N[:dim])
		}
		if !(b.Max[i] > b.Min[i]) {
			return fmt.Errorf("box extent is empty in direction %d: [%g,%g]", i, b.Min[i], b.Max[i])
		}
	}
	return nil
}

func (b Box) point(i, j, k int) (p [3]float64) {
	ijk := [3]int{i, j, k}
	for d := 0; d < 3; d++ {
		if b.N[d] > 0 {
			p[d] = b.Min[d] + (b.Max[d]-b.Min[d])*float64(ijk[d])/float64(b.N[d])
		}
	}
	return
}

// sideFlag finds the box side a boundary face centroid lies on.
func (b Box) sideFlag(dim int) func(c [3]float64) int {
	return func(c [3]float64) int {
		for d := 0; d < dim; d++ {
			tol := 1e-10 * (b.Max[d] - b.Min[d])
			switch {
			case math.Abs(c[d]-b.Min[d]) < tol:
				return XMinFlag + 2*d
			case math.Abs(c[d]-b.Max[d]) < tol:
				return XMaxFlag + 2*d
			}
		}
		return 0
	}
}

// NewStructured2D splits every cell of the box into two counter clockwise
// triangles.
func NewStructured2D(b Box, flag FlagFunc) (m *Mesh, err error) {
	if err = b.check(2); err != nil {
		return
	}
	var (
		nx, ny = b.N[0], b.N[1]
		idx    = func(i, j int) int { return j*(nx+1) + i }
	)
	m = &Mesh{Dim: 2}
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Vertices = append(m.Vertices, b.point(i, j, 0))
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, bb, c, d := idx(i, j), idx(i+1, j), idx(i+1, j+1), idx(i, j+1)
			for _, tri := range [][]int{{a, bb, c}, {a, c, d}} {
				m.addElement(tri, flag)
			}
		}
	}
	m.TagExteriorFaces(b.sideFlag(2))
	return
}

// Corner pairs walking from corner 0 to corner 7 of a hexahedral cell. Corner
// index bits are x + 2y + 4z.
var cubePaths = [6][2]int{{1, 3}, {1, 5}, {2, 3}, {2, 6}, {4, 5}, {4, 6}}

// NewStructured3D splits every cell of the box into six tetrahedra sharing
// the cell diagonal.
func NewStructured3D(b Box, flag FlagFunc) (m *Mesh, err error) {
	if err = b.check(3); err != nil {
		return
	}
	var (
		nx, ny, nz = b.N[0], b.N[1], b.N[2]
		idx        = func(i, j, k int) int { return (k*(ny+1)+j)*(nx+1) + i }
	)
	m = &Mesh{Dim: 3}
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				m.Vertices = append(m.Vertices, b.point(i, j, k))
			}
		}
	}
	var c [8]int
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				for bits := 0; bits < 8; bits++ {
					c[bits] = idx(i+bits&1, j+(bits>>1)&1, k+(bits>>2)&1)
				}
				for _, path := range cubePaths {
					m.addElement([]int{c[0], c[path[0]], c[path[1]], c[7]}, flag)
				}
			}
		}
	}
	m.TagExteriorFaces(b.sideFlag(3))
	return
}

func (m *Mesh) addElement(verts []int, flag FlagFunc) {
	var c [3]float64
	for _, v := range verts {
		for d := 0; d < 3; d++ {
			c[d] += m.Vertices[v][d] / float64(len(verts))
		}
	}
	m.Elements = append(m.Elements, Element{Verts: verts, Tag: flag(c)})
}
