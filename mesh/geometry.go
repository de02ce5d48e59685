package mesh

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/goebfv/types"
)

/*
Edge is one mesh edge as seen from one sub-domain. Cij is the area vector of
the median dual face between the control volumes of I and J, restricted to the
elements of the sub-domain and oriented from I to J. Lij = x_J - x_I.
*/
type Edge struct {
	I, J int
	Cij  [3]float64
	Lij  [3]float64
}

// Face is a boundary face of a sub-domain with outward area vector D. Faces
// between two sub-domains appear in both, tagged InterfaceTag.
type Face struct {
	Verts []int
	D     [3]float64
	Tag   int
}

type Domain struct {
	Flag   int
	Nodes  []int // Sorted global ids of the nodes touched by the sub-domain
	Edges  []Edge
	Faces  []Face
	volume []float64
}

// GeomData holds the median dual geometry of a mesh, split by sub-domain.
type GeomData struct {
	dim        int
	coords     [][3]float64
	Domains    []*Domain
	nodeVolume []float64
}

func NewGeomData(m *Mesh) (gd *GeomData, err error) {
	if err = m.Validate(); err != nil {
		return
	}
	np := len(m.Vertices)
	gd = &GeomData{
		dim:        m.Dim,
		coords:     m.Vertices,
		nodeVolume: make([]float64, np),
	}
	var (
		flags    = m.DomainFlags()
		domIndex = make(map[int]int, len(flags))
		edgeMaps = make([]map[types.EdgeKey]r3.Vec, len(flags))
	)
	for d, flag := range flags {
		domIndex[flag] = d
		edgeMaps[d] = make(map[types.EdgeKey]r3.Vec)
		gd.Domains = append(gd.Domains, &Domain{Flag: flag, volume: make([]float64, np)})
	}
	for k, el := range m.Elements {
		d := domIndex[el.Tag]
		dom := gd.Domains[d]
		pts := m.elementPoints(k)
		share := Measure(m.Dim, pts) / float64(len(pts))
		for _, v := range el.Verts {
			dom.volume[v] += share
			gd.nodeVolume[v] += share
		}
		g := centroid(pts)
		for a := 0; a < len(el.Verts); a++ {
			for b := a + 1; b < len(el.Verts); b++ {
				i, j := el.Verts[a], el.Verts[b]
				if i == j {
					return nil, fmt.Errorf("element %d repeats vertex %d", k, i)
				}
				n := dualFace(m.Dim, pts, a, b, g)
				// Accumulate with the orientation lower id -> higher id
				if i > j {
					n = r3.Scale(-1, n)
				}
				key := types.NewEdgeKey([2]int{i, j})
				edgeMaps[d][key] = r3.Add(edgeMaps[d][key], n)
			}
		}
	}
	for d, dom := range gd.Domains {
		if err = dom.buildEdges(edgeMaps[d], m.Vertices); err != nil {
			return nil, err
		}
		for node, v := range dom.volume {
			if v > 0 {
				dom.Nodes = append(dom.Nodes, node)
			}
		}
	}
	gd.buildFaces(m, domIndex)
	return
}

// dualFace returns the part of the median dual face of edge (a, b) inside one
// element, oriented from a to b.
func dualFace(dim int, pts []r3.Vec, a, b int, g r3.Vec) (n r3.Vec) {
	var (
		mid = r3.Scale(0.5, r3.Add(pts[a], pts[b]))
		ab  = r3.Sub(pts[b], pts[a])
	)
	orient := func(v r3.Vec) r3.Vec {
		if r3.Dot(v, ab) < 0 {
			return r3.Scale(-1, v)
		}
		return v
	}
	if dim == 2 {
		t := r3.Sub(g, mid)
		return orient(r3.Vec{X: t.Y, Y: -t.X})
	}
	for c := range pts {
		if c == a || c == b {
			continue
		}
		fc := centroid([]r3.Vec{pts[a], pts[b], pts[c]})
		n = r3.Add(n, orient(r3.Scale(0.5, r3.Cross(r3.Sub(fc, mid), r3.Sub(g, mid)))))
	}
	return
}

func (dom *Domain) buildEdges(em map[types.EdgeKey]r3.Vec, x [][3]float64) error {
	keys := make([]types.EdgeKey, 0, len(em))
	for key := range em {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		va, vb := keys[a].GetVertices(false), keys[b].GetVertices(false)
		if va[0] != vb[0] {
			return va[0] < vb[0]
		}
		return va[1] < vb[1]
	})
	dom.Edges = make([]Edge, len(keys))
	for n, key := range keys {
		ij := key.GetVertices(false)
		l := r3.Sub(vec(x[ij[1]]), vec(x[ij[0]]))
		if r3.Norm(l) == 0 {
			return fmt.Errorf("edge (%d,%d) has zero length", ij[0], ij[1])
		}
		dom.Edges[n] = Edge{I: ij[0], J: ij[1], Cij: arr(em[key]), Lij: arr(l)}
	}
	return nil
}

// buildFaces collects, for every sub-domain, the faces of its elements that
// lie on the mesh boundary or on an interface with another sub-domain.
func (gd *GeomData) buildFaces(m *Mesh, domIndex map[int]int) {
	var (
		fm   = m.faceMap()
		tags = make(map[types.FaceKey]int, len(m.Boundary))
		keys = make([]types.FaceKey, 0, len(fm))
	)
	for _, f := range m.Boundary {
		tags[types.NewFaceKey(f.Verts...)] = f.Tag
	}
	for key := range fm {
		keys = append(keys, key)
	}
	sortFaceKeys(keys)
	for _, key := range keys {
		refs := fm[key]
		for r, ref := range refs {
			var (
				flag     = m.Elements[ref.elem].Tag
				tag      int
				exterior = true
			)
			for s, other := range refs {
				if s != r && m.Elements[other.elem].Tag == flag {
					exterior = false
				}
			}
			if !exterior {
				continue
			}
			if len(refs) == 1 {
				tag = tags[key]
			} else {
				tag = InterfaceTag
			}
			dom := gd.Domains[domIndex[flag]]
			dom.Faces = append(dom.Faces, Face{
				Verts: append([]int(nil), ref.verts...),
				D:     arr(outwardNormal(m, ref)),
				Tag:   tag,
			})
		}
	}
}

func outwardNormal(m *Mesh, ref faceRef) (n r3.Vec) {
	pts := make([]r3.Vec, len(ref.verts))
	for i, v := range ref.verts {
		pts[i] = vec(m.Vertices[v])
	}
	if m.Dim == 2 {
		t := r3.Sub(pts[1], pts[0])
		n = r3.Vec{X: t.Y, Y: -t.X}
	} else {
		n = r3.Scale(0.5, r3.Cross(r3.Sub(pts[1], pts[0]), r3.Sub(pts[2], pts[0])))
	}
	if r3.Dot(n, r3.Sub(centroid(pts), centroid(m.elementPoints(ref.elem)))) < 0 {
		n = r3.Scale(-1, n)
	}
	return
}

func (gd *GeomData) Dimension() int { return gd.dim }

func (gd *GeomData) NumNodes() int { return len(gd.coords) }

func (gd *GeomData) NumDomains() int { return len(gd.Domains) }

func (gd *GeomData) DomainFlag(d int) int { return gd.Domains[d].Flag }

func (gd *GeomData) Edges(d int) []Edge { return gd.Domains[d].Edges }

func (gd *GeomData) BoundaryFaces(d int) []Face { return gd.Domains[d].Faces }

// Volume returns the control volume of node within sub-domain d, zero when
// the node is not part of it.
func (gd *GeomData) Volume(d, node int) float64 { return gd.Domains[d].volume[node] }

// NodeVolume returns the control volume of node summed over all sub-domains.
func (gd *GeomData) NodeVolume(node int) float64 { return gd.nodeVolume[node] }

func (gd *GeomData) Coordinates(node int) [3]float64 { return gd.coords[node] }
