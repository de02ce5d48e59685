package elliptic

import (
	"fmt"

	"github.com/notargets/goebfv/la"
)

// MatVec is the reduced system A*p = RHS with A = G + sum_d E_d*F_d over the
// free nodes. The products are left unformed so the operator can be applied
// matrix free.
type MatVec struct {
	NDom           int
	FNRows, FNCols int // Shape of every F_d
	G              *la.Mat
	RHS            *la.Vec
	E, F           []*la.Mat
	EF             []*la.Mat // Free blocks of E_d*F_d, kept for defect correction
	Output         *la.Vec
}

// Mult is collective: y = G*x + sum_d E_d*(F_d*x).
func (mv *MatVec) Mult(x, y *la.Vec) (err error) {
	var (
		comm     = mv.commOf()
		grad, ef *la.Vec
	)
	if err = mv.G.Mult(x, y); err != nil {
		return
	}
	if grad, err = comm.NewVec("Mult_grad", mv.FNRows); err != nil {
		return
	}
	if ef, err = comm.NewVec("Mult_ef", mv.FNCols); err != nil {
		return
	}
	for d := 0; d < mv.NDom; d++ {
		if err = mv.F[d].Mult(x, grad); err != nil {
			return
		}
		if err = mv.E[d].Mult(grad, ef); err != nil {
			return
		}
		if err = y.AXPY(1, ef); err != nil {
			return
		}
	}
	if err = grad.Destroy(); err != nil {
		return
	}
	return ef.Destroy()
}

// Operator is collective and forms the reduced operator explicitly.
func (mv *MatVec) Operator() (A *la.Mat, err error) {
	if A, err = mv.G.Duplicate("A"); err != nil {
		return
	}
	for d := 0; d < mv.NDom; d++ {
		var EF *la.Mat
		if EF, err = mv.E[d].MatMatMult(fmt.Sprintf("A_EF%d", d), mv.F[d]); err != nil {
			return
		}
		if err = A.AXPY(1, EF); err != nil {
			return
		}
		if err = EF.Destroy(); err != nil {
			return
		}
	}
	return
}

// Destroy is collective and releases every matrix and vector of the system.
func (mv *MatVec) Destroy() (err error) {
	mats := append([]*la.Mat{mv.G}, mv.E...)
	mats = append(mats, mv.F...)
	mats = append(mats, mv.EF...)
	for _, M := range mats {
		if M == nil {
			continue
		}
		if err = M.Destroy(); err != nil {
			return
		}
	}
	for _, v := range []*la.Vec{mv.RHS, mv.Output} {
		if v == nil {
			continue
		}
		if err = v.Destroy(); err != nil {
			return
		}
	}
	return
}

func (mv *MatVec) commOf() *la.Comm { return mv.G.Comm() }
