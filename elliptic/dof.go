package elliptic

import (
	"sort"

	"github.com/notargets/goebfv/utils"
)

// DOFMap splits the nodes into free unknowns and prescribed (Dirichlet)
// values. Free nodes are numbered by their position in Free, which is also
// their row in the reduced system.
type DOFMap struct {
	NumNodes        int
	Free            utils.Index
	Prescribed      utils.Index
	PrescribedValue []float64 // Aligned with Prescribed
	freePos         []int
}

func NewDOFMap(numNodes int, prescribed map[int]float64) (dm *DOFMap, err error) {
	if numNodes <= 0 {
		return nil, configErrorf("number of nodes must be positive, have %d", numNodes)
	}
	nodes := make([]int, 0, len(prescribed))
	for node := range prescribed {
		if node < 0 || node >= numNodes {
			return nil, configErrorf("prescribed node %d outside [0,%d)", node, numNodes)
		}
		nodes = append(nodes, node)
	}
	dm = &DOFMap{NumNodes: numNodes, Prescribed: utils.NewSorted(nodes)}
	dm.PrescribedValue = make([]float64, len(dm.Prescribed))
	for i, node := range dm.Prescribed {
		dm.PrescribedValue[i] = prescribed[node]
	}
	for node := 0; node < numNodes; node++ {
		if _, ok := prescribed[node]; !ok {
			dm.Free = append(dm.Free, node)
		}
	}
	if len(dm.Free)+len(dm.Prescribed) != numNodes {
		return nil, configErrorf("free (%d) and prescribed (%d) nodes do not cover %d nodes",
			len(dm.Free), len(dm.Prescribed), numNodes)
	}
	if dm.freePos, err = dm.Free.Inverse(numNodes); err != nil {
		return nil, configErrorf("free node numbering: %v", err)
	}
	return
}

func (dm *DOFMap) NumFree() int { return len(dm.Free) }

func (dm *DOFMap) NumPrescribed() int { return len(dm.Prescribed) }

// FreeRow returns the reduced system row of node, ok is false for prescribed
// nodes and nodes out of range.
func (dm *DOFMap) FreeRow(node int) (row int, ok bool) {
	if node < 0 || node >= dm.NumNodes {
		return -1, false
	}
	row = dm.freePos[node]
	return row, row >= 0
}

func (dm *DOFMap) IsFree(node int) bool {
	_, ok := dm.FreeRow(node)
	return ok
}

// Expand builds the full nodal field from the free values and the prescribed
// values.
func (dm *DOFMap) Expand(free []float64) (p []float64, err error) {
	if len(free) != len(dm.Free) {
		return nil, configErrorf("have %d free values for %d free nodes", len(free), len(dm.Free))
	}
	p = make([]float64, dm.NumNodes)
	for i, node := range dm.Free {
		p[node] = free[i]
	}
	for i, node := range dm.Prescribed {
		p[node] = dm.PrescribedValue[i]
	}
	return
}

// MarkedMesh finds the nodes carrying a boundary or node set flag.
type MarkedMesh interface {
	MarkedNodes(flag int) []int
}

// PrescribedFromMarkers maps every node marked with a Dirichlet flag to the
// flag's value. A node on several Dirichlet markers takes the value of the
// lowest flag.
func PrescribedFromMarkers(m MarkedMesh, values map[int]float64) (prescribed map[int]float64) {
	flags := make([]int, 0, len(values))
	for flag := range values {
		flags = append(flags, flag)
	}
	sort.Ints(flags)
	prescribed = make(map[int]float64)
	for _, flag := range flags {
		for _, node := range m.MarkedNodes(flag) {
			if _, ok := prescribed[node]; !ok {
				prescribed[node] = values[flag]
			}
		}
	}
	return
}
