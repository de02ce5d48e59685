package elliptic

import (
	"math"

	"github.com/notargets/goebfv/la"
	"github.com/notargets/goebfv/utils"
)

// SourceTerm adds its contribution to the reduced right hand side before the
// vector is assembled. Contribute is called by every rank and must only add
// to rows the calling rank owns.
type SourceTerm interface {
	Contribute(rhs *la.Vec, dof *DOFMap, geom Geometry) error
}

// MinFlowRate is the smallest accepted well flow rate magnitude.
const MinFlowRate = 1e-7

/*
Well distributes the total flow rate FlowRate over its nodes in proportion to
their control volumes. Positive rates are production with the sign convention
of the assembled operator. A zero Volume means the total is taken over the
free nodes of the well.
*/
type Well struct {
	Flag     int
	FlowRate float64
	Volume   float64
	Nodes    []int
}

type WellSource struct {
	Wells []Well
	// Strict rejects wells with a vanishing total volume
	Strict bool
}

func (ws *WellSource) Contribute(rhs *la.Vec, dof *DOFMap, geom Geometry) (err error) {
	if len(ws.Wells) == 0 {
		return configErrorf("no wells configured")
	}
	lo, hi := rhs.OwnershipRange()
	for _, w := range ws.Wells {
		if math.Abs(w.FlowRate) <= MinFlowRate {
			return configErrorf("flow rate null for well %d: Qt = %g", w.Flag, w.FlowRate)
		}
		if len(w.Nodes) == 0 {
			return configErrorf("well %d has no nodes", w.Flag)
		}
		// A node listed twice takes its share once
		nodes := utils.NewSorted(w.Nodes)
		for _, node := range nodes {
			if node < 0 || node >= dof.NumNodes {
				return configErrorf("well %d node %d outside [0,%d)", w.Flag, node, dof.NumNodes)
			}
		}
		Vt := w.Volume
		if Vt <= 0 {
			Vt = 0
			for _, node := range nodes {
				if dof.IsFree(node) {
					Vt += geom.NodeVolume(node)
				}
			}
		}
		if ws.Strict && Vt <= 1e-12 {
			return configErrorf("well %d total volume is %g", w.Flag, Vt)
		}
		if Vt <= 0 {
			continue
		}
		for _, node := range nodes {
			row, free := dof.FreeRow(node)
			if !free || row < lo || row >= hi {
				continue
			}
			if err = rhs.AddValue(row, w.FlowRate*geom.NodeVolume(node)/Vt); err != nil {
				return
			}
		}
	}
	return
}

// ForcingFunc is a volumetric source density for a sub-domain flag.
type ForcingFunc func(domainFlag int, x [3]float64) float64

// ManufacturedSource integrates a known forcing over the control volumes of
// the free nodes, for verification runs with an exact solution.
type ManufacturedSource struct {
	Forcing ForcingFunc
}

func (ms *ManufacturedSource) Contribute(rhs *la.Vec, dof *DOFMap, geom Geometry) (err error) {
	if ms.Forcing == nil {
		return configErrorf("manufactured source without a forcing function")
	}
	lo, hi := rhs.OwnershipRange()
	for row := lo; row < hi; row++ {
		var (
			node = dof.Free[row]
			x    = geom.Coordinates(node)
			s    float64
		)
		for d := 0; d < geom.NumDomains(); d++ {
			if v := geom.Volume(d, node); v > 0 {
				s += v * ms.Forcing(geom.DomainFlag(d), x)
			}
		}
		if s != 0 {
			if err = rhs.AddValue(row, s); err != nil {
				return
			}
		}
	}
	return
}

// Sub-domain flags of the two material problem of Crumpton et al.
const (
	CrumptonLeftFlag  = 3300 // x <= 0
	CrumptonRightFlag = 3301 // x > 0
)

// CrumptonForcing returns div(K grad p) of CrumptonSolution, with K the
// identity on the left and alpha*[[2,1],[1,2]] on the right.
func CrumptonForcing(alpha float64) ForcingFunc {
	return func(flag int, x [3]float64) float64 {
		switch flag {
		case CrumptonLeftFlag:
			return -(2*math.Sin(x[1])+math.Cos(x[1]))*alpha*x[0] - math.Sin(x[1])
		case CrumptonRightFlag:
			return 2 * alpha * math.Exp(x[0]) * math.Cos(x[1])
		}
		return 0
	}
}

func CrumptonSolution(alpha float64, x [3]float64) float64 {
	if x[0] <= 0 {
		return (2*math.Sin(x[1])+math.Cos(x[1]))*alpha*x[0] + math.Sin(x[1])
	}
	return math.Exp(x[0]) * math.Sin(x[1])
}
