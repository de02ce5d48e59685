package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goebfv/types"
)

// DefaultDomainFlag is the sub-domain flag of elements read without one.
const DefaultDomainFlag = 3300

// InterfaceTag marks faces between two sub-domains.
const InterfaceTag = -1

type Element struct {
	Verts []int
	Tag   int // Sub-domain flag
	Depth int // Number of subdivisions from the background mesh
}

type BoundaryFace struct {
	Verts []int
	Tag   int
}

// Mesh holds triangles (Dim == 2) or tetrahedra (Dim == 3). Boundary faces are
// edges in 2D and triangles in 3D. NodeSets hold point markers, keyed by flag.
type Mesh struct {
	Dim         int
	Vertices    [][3]float64
	Elements    []Element
	Boundary    []BoundaryFace
	NodeSets    map[int][]int
	MarkerNames map[int]string
}

func (m *Mesh) Dimension() int { return m.Dim }

func (m *Mesh) NumNodes() int { return len(m.Vertices) }

func (m *Mesh) NumElements() int { return len(m.Elements) }

func (m *Mesh) ElementVertices(k int) []int { return m.Elements[k].Verts }

func (m *Mesh) ElementDepth(k int) int { return m.Elements[k].Depth }

func (m *Mesh) Coordinates(node int) [3]float64 { return m.Vertices[node] }

// DomainFlags returns the distinct element flags in ascending order.
func (m *Mesh) DomainFlags() (flags []int) {
	seen := make(map[int]bool)
	for _, el := range m.Elements {
		if !seen[el.Tag] {
			seen[el.Tag] = true
			flags = append(flags, el.Tag)
		}
	}
	sort.Ints(flags)
	return
}

// MarkerFlags returns every boundary and node set flag in ascending order.
func (m *Mesh) MarkerFlags() (flags []int) {
	seen := make(map[int]bool)
	for _, f := range m.Boundary {
		if !seen[f.Tag] {
			seen[f.Tag] = true
			flags = append(flags, f.Tag)
		}
	}
	for flag := range m.NodeSets {
		if !seen[flag] {
			seen[flag] = true
			flags = append(flags, flag)
		}
	}
	sort.Ints(flags)
	return
}

// MarkedNodes returns the sorted nodes carried by boundary faces or node sets
// with the given flag.
func (m *Mesh) MarkedNodes(flag int) (nodes []int) {
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	for _, f := range m.Boundary {
		if f.Tag == flag {
			for _, v := range f.Verts {
				add(v)
			}
		}
	}
	for _, v := range m.NodeSets[flag] {
		add(v)
	}
	sort.Ints(nodes)
	return
}

// ElementMeasure returns the unsigned area (2D) or volume (3D) of element k.
func (m *Mesh) ElementMeasure(k int) float64 {
	return Measure(m.Dim, m.elementPoints(k))
}

func (m *Mesh) elementPoints(k int) (pts []r3.Vec) {
	verts := m.Elements[k].Verts
	pts = make([]r3.Vec, len(verts))
	for i, v := range verts {
		pts[i] = vec(m.Vertices[v])
	}
	return
}

func (m *Mesh) Validate() (err error) {
	if m.Dim != 2 && m.Dim != 3 {
		return fmt.Errorf("mesh dimension must be 2 or 3, have %d", m.Dim)
	}
	var (
		np       = len(m.Vertices)
		checkIDs = func(what string, k int, verts []int) error {
			for _, v := range verts {
				if v < 0 || v >= np {
					return fmt.Errorf("%s %d references vertex %d, mesh has %d vertices", what, k, v, np)
				}
			}
			return nil
		}
	)
	if np == 0 || len(m.Elements) == 0 {
		return fmt.Errorf("mesh is empty: %d vertices, %d elements", np, len(m.Elements))
	}
	for k, el := range m.Elements {
		if len(el.Verts) != m.Dim+1 {
			return fmt.Errorf("element %d has %d vertices, a %dD simplex has %d",
				k, len(el.Verts), m.Dim, m.Dim+1)
		}
		if err = checkIDs("element", k, el.Verts); err != nil {
			return
		}
	}
	for k, f := range m.Boundary {
		if len(f.Verts) != m.Dim {
			return fmt.Errorf("boundary face %d has %d vertices, need %d", k, len(f.Verts), m.Dim)
		}
		if err = checkIDs("boundary face", k, f.Verts); err != nil {
			return
		}
	}
	for flag, nodes := range m.NodeSets {
		if err = checkIDs("node set", flag, nodes); err != nil {
			return
		}
	}
	return
}

type faceRef struct {
	elem  int
	verts []int
}

// elementFaces lists the faces of element k: edges in 2D, triangles in 3D.
func (m *Mesh) elementFaces(k int) (faces [][]int) {
	v := m.Elements[k].Verts
	if m.Dim == 2 {
		return [][]int{{v[0], v[1]}, {v[1], v[2]}, {v[2], v[0]}}
	}
	return [][]int{{v[1], v[2], v[3]}, {v[0], v[2], v[3]}, {v[0], v[1], v[3]}, {v[0], v[1], v[2]}}
}

// faceMap groups element faces by their sorted vertex key.
func (m *Mesh) faceMap() (fm map[types.FaceKey][]faceRef) {
	fm = make(map[types.FaceKey][]faceRef)
	for k := range m.Elements {
		for _, f := range m.elementFaces(k) {
			key := types.NewFaceKey(f...)
			fm[key] = append(fm[key], faceRef{elem: k, verts: f})
		}
	}
	return
}

// TagExteriorFaces replaces Boundary with every face owned by a single
// element, tagged by tagFn evaluated at the face centroid.
func (m *Mesh) TagExteriorFaces(tagFn func(centroid [3]float64) int) {
	var keys []types.FaceKey
	fm := m.faceMap()
	for key, refs := range fm {
		if len(refs) == 1 {
			keys = append(keys, key)
		}
	}
	sortFaceKeys(keys)
	m.Boundary = m.Boundary[:0]
	for _, key := range keys {
		ref := fm[key][0]
		pts := make([]r3.Vec, len(ref.verts))
		for i, v := range ref.verts {
			pts[i] = vec(m.Vertices[v])
		}
		m.Boundary = append(m.Boundary, BoundaryFace{
			Verts: append([]int(nil), ref.verts...),
			Tag:   tagFn(arr(centroid(pts))),
		})
	}
}

func sortFaceKeys(keys []types.FaceKey) {
	sort.Slice(keys, func(a, b int) bool {
		for i := 0; i < 3; i++ {
			if keys[a][i] != keys[b][i] {
				return keys[a][i] < keys[b][i]
			}
		}
		return false
	})
}

func vec(x [3]float64) r3.Vec { return r3.Vec{X: x[0], Y: x[1], Z: x[2]} }

func arr(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func centroid(pts []r3.Vec) (c r3.Vec) {
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}

// Measure returns the unsigned area of a triangle (dim 2) or volume of a
// tetrahedron (dim 3).
func Measure(dim int, pts []r3.Vec) float64 {
	if dim == 2 {
		return 0.5 * math.Abs(r3.Cross(r3.Sub(pts[1], pts[0]), r3.Sub(pts[2], pts[0])).Z)
	}
	return math.Abs(r3.Dot(r3.Sub(pts[1], pts[0]),
		r3.Cross(r3.Sub(pts[2], pts[0]), r3.Sub(pts[3], pts[0])))) / 6
}
