package la

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Solve is collective. It solves A*x = b with a dense LU factorization and is
// meant as a reference solver for small systems.
func (c *Comm) Solve(A *Mat, b, x *Vec) error {
	_, err := c.collective("Solve"+A.sig("")+b.sig("")+x.sig(""), func() (any, error) {
		var (
			M    *mat.Dense
			sol  mat.VecDense
			cond mat.Condition
			err  error
		)
		if M, err = A.ToDense(); err != nil {
			return nil, err
		}
		if err = b.usable(); err != nil {
			return nil, err
		}
		if err = x.usable(); err != nil {
			return nil, err
		}
		nr, nc := M.Dims()
		if nr != nc || nr != b.d.n || nr != x.d.n {
			return nil, fmt.Errorf("%w: %s is %dx%d, b has %d, x has %d", ErrDimension,
				A.d.name, nr, nc, b.d.n, x.d.n)
		}
		if err = sol.SolveVec(M, b.d.values); err != nil {
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return nil, fmt.Errorf("%w: %s: %v", ErrSingular, A.d.name, err)
			}
		}
		for i := 0; i < nr; i++ {
			if v := sol.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %s produced a non finite solution", ErrSingular, A.d.name)
			}
		}
		x.d.values.CopyVec(&sol)
		return nil, nil
	})
	return err
}
