package elliptic

import (
	"github.com/notargets/goebfv/utils"
)

// NodalGradients applies the gradient operator F of every sub-domain to the
// nodal field p. At interface nodes the sub-domain gradients are averaged
// with their control volumes as weights.
func NodalGradients(geom Geometry, p []float64) (grad [][3]float64, err error) {
	if geom == nil {
		return nil, configErrorf("no geometry")
	}
	var (
		dim  = geom.Dimension()
		np   = geom.NumNodes()
		wsum = make([]float64, np)
	)
	if dim != 2 && dim != 3 {
		return nil, configErrorf("mesh dimension must be 2 or 3, have %d", dim)
	}
	if len(p) != np {
		return nil, configErrorf("have %d nodal values for %d nodes", len(p), np)
	}
	grad = make([][3]float64, np)
	for d := 0; d < geom.NumDomains(); d++ {
		var (
			vol = func(node int) float64 { return geom.Volume(d, node) }
			// Rows are scaled back by the sub-domain volume, which is the
			// averaging weight
			add = func(row, col int, v float64) {
				node, k := row/dim, row%dim
				grad[node][k] += vol(node) * v * p[col]
			}
		)
		for _, e := range geom.Edges(d) {
			gradientFEdges(dim, e, vol(e.I), vol(e.J), add)
		}
		for _, f := range geom.BoundaryFaces(d) {
			gradientFBdry(dim, f, vol, add)
		}
		for _, node := range domainNodes(geom, d) {
			wsum[node] += vol(node)
		}
	}
	for node := range grad {
		if wsum[node] > 0 {
			for k := 0; k < dim; k++ {
				grad[node][k] /= wsum[node]
			}
		}
	}
	return
}

func domainNodes(geom Geometry, d int) (nodes utils.Index) {
	for node := 0; node < geom.NumNodes(); node++ {
		if geom.Volume(d, node) > 0 {
			nodes = append(nodes, node)
		}
	}
	return
}
