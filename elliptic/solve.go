package elliptic

import (
	"github.com/notargets/goebfv/la"
)

// SolvePressure is collective. It forms the reduced operator, solves for the
// free nodes into mv.Output and returns the full nodal pressure.
func SolvePressure(mv *MatVec, dof *DOFMap) (p []float64, err error) {
	var (
		A    *la.Mat
		free []float64
	)
	if mv == nil || dof == nil {
		return nil, configErrorf("nothing to solve")
	}
	if A, err = mv.Operator(); err != nil {
		return
	}
	if err = mv.G.Comm().Solve(A, mv.RHS, mv.Output); err != nil {
		return
	}
	if err = A.Destroy(); err != nil {
		return
	}
	if free, err = mv.Output.Values(); err != nil {
		return
	}
	return dof.Expand(free)
}
