package elliptic

import (
	"math"

	"github.com/notargets/goebfv/mesh"
)

// Geometry is the median dual geometry consumed by the assembly. Domains are
// addressed by index in [0, NumDomains).
type Geometry interface {
	Dimension() int
	NumNodes() int
	NumDomains() int
	DomainFlag(d int) int
	Edges(d int) []mesh.Edge
	BoundaryFaces(d int) []mesh.Face
	Volume(d, node int) float64
	NodeVolume(node int) float64
	Coordinates(node int) [3]float64
}

type adder func(row, col int, v float64)

func dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

/*
The operator A = E*F + G approximates the integral of div(K grad p) over each
control volume:
  - F maps nodal values to nodal gradients (rows node*dim+k),
  - G is the two point flux K (Cij.Lij)/|Lij|^2 (p_j - p_i),
  - E adds the part of the flux through Cij not aligned with the edge, using
    the mean of the two nodal gradients.
*/

func divergenceE(dim int, e mesh.Edge, K float64, add adder) {
	var (
		l  = math.Sqrt(dot(e.Lij, e.Lij))
		cl = dot(e.Cij, e.Lij) / l
	)
	for k := 0; k < dim; k++ {
		w := 0.5 * K * (e.Cij[k] - cl*e.Lij[k]/l)
		for _, c := range [2]int{e.I, e.J} {
			add(e.I, c*dim+k, w)
			add(e.J, c*dim+k, -w)
		}
	}
}

func divergenceG(e mesh.Edge, K float64, add adder) {
	alpha := K * dot(e.Cij, e.Lij) / dot(e.Lij, e.Lij)
	add(e.I, e.I, -alpha)
	add(e.I, e.J, alpha)
	add(e.J, e.J, -alpha)
	add(e.J, e.I, alpha)
}

// gradientFEdges uses the edge mean value on the dual face; vi and vj are the
// control volumes of the end nodes within the edge's sub-domain.
func gradientFEdges(dim int, e mesh.Edge, vi, vj float64, add adder) {
	for k := 0; k < dim; k++ {
		for _, c := range [2]int{e.I, e.J} {
			add(e.I*dim+k, c, e.Cij[k]/(2*vi))
			add(e.J*dim+k, c, -e.Cij[k]/(2*vj))
		}
	}
}

// gradientFBdry closes the control volumes of boundary nodes. Each face node
// takes its share D/m of the face, with the face value weighted toward the
// node: (5,1)/6 on 2D edges and (6,1,1)/8 on 3D triangles.
func gradientFBdry(dim int, f mesh.Face, vol func(node int) float64, add adder) {
	var (
		m            = len(f.Verts)
		wSelf, wRest = 5. / 6., 1. / 6.
	)
	if m == 3 {
		wSelf, wRest = 6./8., 1./8.
	}
	for a, na := range f.Verts {
		va := vol(na)
		if va == 0 {
			continue
		}
		for b, nb := range f.Verts {
			w := wRest
			if a == b {
				w = wSelf
			}
			for k := 0; k < dim; k++ {
				add(na*dim+k, nb, f.D[k]/float64(m)*w/va)
			}
		}
	}
}
