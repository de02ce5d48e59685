package la

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goebfv/utils"
)

type vecData struct {
	id        uint64
	name      string
	n         int
	pending   [][]float64 // One insertion buffer per rank
	values    *mat.VecDense
	destroyed bool
}

// Vec is a rank's handle on a dense vector shared by the whole world. A new
// vector holds zeros.
type Vec struct {
	d    *vecData
	comm *Comm
}

// NewVec is collective.
func (c *Comm) NewVec(name string, n int) (v *Vec, err error) {
	return c.NewVecFromValues(name, make([]float64, n))
}

// NewVecFromValues is collective. The values of the last arriving rank are
// used, so every rank must pass the same data.
func (c *Comm) NewVecFromValues(name string, vals []float64) (v *Vec, err error) {
	var (
		res any
		n   = len(vals)
	)
	if res, err = c.collective(fmt.Sprintf("NewVec(%s,%d)", name, n), func() (any, error) {
		if n < 1 {
			return nil, fmt.Errorf("%w: vector %s needs a positive length", ErrDimension, name)
		}
		return &vecData{
			id:      c.world.nextID.Add(1),
			name:    name,
			n:       n,
			pending: make([][]float64, c.world.size),
			values:  mat.NewVecDense(n, append([]float64(nil), vals...)),
		}, nil
	}); err != nil {
		return
	}
	v = &Vec{d: res.(*vecData), comm: c}
	return
}

func (v *Vec) Name() string { return v.d.name }

func (v *Vec) Len() int { return v.d.n }

func (v *Vec) OwnershipRange() (lo, hi int) {
	pm := utils.NewPartitionMap(v.comm.Size(), v.d.n)
	return pm.GetBucketRange(v.comm.rank)
}

func (v *Vec) sig(op string) string {
	return fmt.Sprintf("Vec%s(%s#%d)", op, v.d.name, v.d.id)
}

func (v *Vec) usable() error {
	if v.d.destroyed {
		return fmt.Errorf("%w: %s", ErrDestroyed, v.d.name)
	}
	return nil
}

// AddValue adds val to entry i. Insertions become visible at Assemble.
func (v *Vec) AddValue(i int, val float64) error {
	if err := v.usable(); err != nil {
		return err
	}
	if i < 0 || i >= v.d.n {
		return fmt.Errorf("%w: entry %d outside %s of length %d", ErrDimension, i, v.d.name, v.d.n)
	}
	buf := v.d.pending[v.comm.rank]
	if buf == nil {
		buf = make([]float64, v.d.n)
		v.d.pending[v.comm.rank] = buf
	}
	buf[i] += val
	return nil
}

// Assemble is collective. Buffered insertions are added in rank order.
func (v *Vec) Assemble() error {
	_, err := v.comm.collective(v.sig("Assemble"), func() (any, error) {
		if err := v.usable(); err != nil {
			return nil, err
		}
		for r, buf := range v.d.pending {
			if buf == nil {
				continue
			}
			for i, val := range buf {
				if val != 0 {
					v.d.values.SetVec(i, v.d.values.AtVec(i)+val)
				}
			}
			v.d.pending[r] = nil
		}
		return nil, nil
	})
	return err
}

// AXPY is collective: v += alpha*x.
func (v *Vec) AXPY(alpha float64, x *Vec) error {
	_, err := v.comm.collective(v.sig("AXPY")+x.sig(""), func() (any, error) {
		if err := v.usable(); err != nil {
			return nil, err
		}
		if err := x.usable(); err != nil {
			return nil, err
		}
		if v.d.n != x.d.n {
			return nil, fmt.Errorf("%w: %s has %d, %s has %d", ErrDimension,
				v.d.name, v.d.n, x.d.name, x.d.n)
		}
		v.d.values.AddScaledVec(v.d.values, alpha, x.d.values)
		return nil, nil
	})
	return err
}

func (v *Vec) GetValue(i int) (val float64, err error) {
	if err = v.usable(); err != nil {
		return
	}
	if i < 0 || i >= v.d.n {
		err = fmt.Errorf("%w: entry %d outside %s", ErrDimension, i, v.d.name)
		return
	}
	val = v.d.values.AtVec(i)
	return
}

// Values returns a copy of the assembled entries.
func (v *Vec) Values() (vals []float64, err error) {
	if err = v.usable(); err != nil {
		return
	}
	vals = make([]float64, v.d.n)
	for i := range vals {
		vals[i] = v.d.values.AtVec(i)
	}
	return
}

// Destroy is collective. Destroying twice is a no-op.
func (v *Vec) Destroy() error {
	_, err := v.comm.collective(v.sig("Destroy"), func() (any, error) {
		v.d.destroyed = true
		v.d.pending = nil
		return nil, nil
	})
	return err
}
