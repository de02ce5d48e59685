package la

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goebfv/utils"
)

type matData struct {
	id        uint64
	name      string
	nr, nc    int
	pending   []*sparse.DOK // One insertion buffer per rank
	csr       *sparse.CSR   // nil when the matrix holds no entries
	assembled bool
	destroyed bool
}

// Mat is a rank's handle on a sparse matrix shared by the whole world.
type Mat struct {
	d    *matData
	comm *Comm
}

// NewMat is collective.
func (c *Comm) NewMat(name string, nr, nc int) (A *Mat, err error) {
	var res any
	sig := fmt.Sprintf("NewMat(%s,%d,%d)", name, nr, nc)
	if res, err = c.collective(sig, func() (any, error) {
		if nr < 0 || nc < 0 {
			return nil, fmt.Errorf("%w: matrix %s of size %dx%d", ErrDimension, name, nr, nc)
		}
		return c.world.newMatData(name, nr, nc), nil
	}); err != nil {
		return
	}
	A = &Mat{d: res.(*matData), comm: c}
	return
}

func (w *World) newMatData(name string, nr, nc int) *matData {
	return &matData{
		id:      w.nextID.Add(1),
		name:    name,
		nr:      nr,
		nc:      nc,
		pending: make([]*sparse.DOK, w.size),
	}
}

func (A *Mat) Name() string { return A.d.name }

func (A *Mat) Dims() (nr, nc int) { return A.d.nr, A.d.nc }

func (A *Mat) Comm() *Comm { return A.comm }

// OwnershipRange returns the half open row range owned by the calling rank.
func (A *Mat) OwnershipRange() (lo, hi int) {
	pm := utils.NewPartitionMap(A.comm.Size(), A.d.nr)
	return pm.GetBucketRange(A.comm.rank)
}

// AddValue adds v to entry (i, j). Insertions become visible at Assemble.
func (A *Mat) AddValue(i, j int, v float64) error {
	d := A.d
	switch {
	case d.destroyed:
		return fmt.Errorf("%w: %s", ErrDestroyed, d.name)
	case i < 0 || i >= d.nr || j < 0 || j >= d.nc:
		return fmt.Errorf("%w: entry (%d,%d) outside %s of size %dx%d",
			ErrDimension, i, j, d.name, d.nr, d.nc)
	}
	buf := d.pending[A.comm.rank]
	if buf == nil {
		buf = sparse.NewDOK(d.nr, d.nc)
		d.pending[A.comm.rank] = buf
	}
	buf.Set(i, j, buf.At(i, j)+v)
	return nil
}

// Assemble is collective. Buffered insertions of all ranks are summed in rank
// order into the assembled storage.
func (A *Mat) Assemble() error {
	_, err := A.comm.collective(A.sig("Assemble"), func() (any, error) {
		d := A.d
		if d.destroyed {
			return nil, fmt.Errorf("%w: %s", ErrDestroyed, d.name)
		}
		rows := d.rowMaps()
		for r, buf := range d.pending {
			if buf == nil {
				continue
			}
			buf.DoNonZero(func(i, j int, v float64) {
				if rows[i] == nil {
					rows[i] = make(map[int]float64)
				}
				rows[i][j] += v
			})
			d.pending[r] = nil
		}
		d.csr = buildCSR(d.nr, d.nc, rows)
		d.assembled = true
		return nil, nil
	})
	return err
}

func (A *Mat) sig(op string) string {
	return fmt.Sprintf("Mat%s(%s#%d)", op, A.d.name, A.d.id)
}

func (A *Mat) readable() error {
	switch {
	case A.d.destroyed:
		return fmt.Errorf("%w: %s", ErrDestroyed, A.d.name)
	case !A.d.assembled:
		return fmt.Errorf("%w: %s", ErrNotAssembled, A.d.name)
	}
	return nil
}

func (A *Mat) GetValue(i, j int) (v float64, err error) {
	if err = A.readable(); err != nil {
		return
	}
	if i < 0 || i >= A.d.nr || j < 0 || j >= A.d.nc {
		err = fmt.Errorf("%w: entry (%d,%d) outside %s", ErrDimension, i, j, A.d.name)
		return
	}
	if A.d.csr != nil {
		v = A.d.csr.At(i, j)
	}
	return
}

// Row returns copies of the stored column indices and values of row i, in
// ascending column order.
func (A *Mat) Row(i int) (cols []int, vals []float64, err error) {
	if err = A.readable(); err != nil {
		return
	}
	if i < 0 || i >= A.d.nr {
		err = fmt.Errorf("%w: row %d outside %s", ErrDimension, i, A.d.name)
		return
	}
	if A.d.csr == nil {
		return
	}
	raw := A.d.csr.RawMatrix()
	lo, hi := raw.Indptr[i], raw.Indptr[i+1]
	cols = append([]int(nil), raw.Ind[lo:hi]...)
	vals = append([]float64(nil), raw.Data[lo:hi]...)
	return
}

// NNZ returns the number of stored entries.
func (A *Mat) NNZ() (nnz int, err error) {
	if err = A.readable(); err != nil {
		return
	}
	if A.d.csr != nil {
		nnz = len(A.d.csr.RawMatrix().Data)
	}
	return
}

func (A *Mat) ToDense() (M *mat.Dense, err error) {
	if err = A.readable(); err != nil {
		return
	}
	if A.d.nr == 0 || A.d.nc == 0 {
		err = fmt.Errorf("%w: %s has an empty dimension", ErrDimension, A.d.name)
		return
	}
	M = mat.NewDense(A.d.nr, A.d.nc, nil)
	A.d.doNonZero(func(i, j int, v float64) { M.Set(i, j, v) })
	return
}

// SubMatrix is collective. It extracts A[rows[a]][cols[b]] into a new
// assembled matrix of size len(rows) x len(cols).
func (A *Mat) SubMatrix(name string, rows, cols utils.Index) (S *Mat, err error) {
	var res any
	sig := fmt.Sprintf("%s->%s(%x,%x)", A.sig("SubMatrix"), name, rows.Checksum(), cols.Checksum())
	if res, err = A.comm.collective(sig, func() (any, error) {
		var (
			d      = A.d
			colPos []int
			err    error
		)
		if err = A.readable(); err != nil {
			return nil, err
		}
		if colPos, err = cols.Inverse(d.nc); err != nil {
			return nil, fmt.Errorf("%w: column set for %s: %v", ErrDimension, d.name, err)
		}
		sd := A.comm.world.newMatData(name, len(rows), len(cols))
		out := sd.rowMaps()
		for a, i := range rows {
			if i < 0 || i >= d.nr {
				return nil, fmt.Errorf("%w: row %d outside %s", ErrDimension, i, d.name)
			}
			d.doRow(i, func(j int, v float64) {
				if p := colPos[j]; p >= 0 {
					if out[a] == nil {
						out[a] = make(map[int]float64)
					}
					out[a][p] = v
				}
			})
		}
		sd.csr = buildCSR(sd.nr, sd.nc, out)
		sd.assembled = true
		return sd, nil
	}); err != nil {
		return
	}
	S = &Mat{d: res.(*matData), comm: A.comm}
	return
}

// MatMatMult is collective and returns the assembled product A*B.
func (A *Mat) MatMatMult(name string, B *Mat) (C *Mat, err error) {
	var res any
	sig := fmt.Sprintf("%s*%s->%s", A.sig("MatMult"), B.sig(""), name)
	if res, err = A.comm.collective(sig, func() (any, error) {
		if err := A.readable(); err != nil {
			return nil, err
		}
		if err := B.readable(); err != nil {
			return nil, err
		}
		if A.d.nc != B.d.nr {
			return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrDimension,
				A.d.name, A.d.nr, A.d.nc, B.d.name, B.d.nr, B.d.nc)
		}
		cd := A.comm.world.newMatData(name, A.d.nr, B.d.nc)
		out := cd.rowMaps()
		for i := 0; i < A.d.nr; i++ {
			A.d.doRow(i, func(k int, a float64) {
				B.d.doRow(k, func(j int, b float64) {
					if out[i] == nil {
						out[i] = make(map[int]float64)
					}
					out[i][j] += a * b
				})
			})
		}
		cd.csr = buildCSR(cd.nr, cd.nc, out)
		cd.assembled = true
		return cd, nil
	}); err != nil {
		return
	}
	C = &Mat{d: res.(*matData), comm: A.comm}
	return
}

// AXPY is collective: A += alpha*X.
func (A *Mat) AXPY(alpha float64, X *Mat) error {
	_, err := A.comm.collective(A.sig("AXPY")+X.sig(""), func() (any, error) {
		if err := A.readable(); err != nil {
			return nil, err
		}
		if err := X.readable(); err != nil {
			return nil, err
		}
		if A.d.nr != X.d.nr || A.d.nc != X.d.nc {
			return nil, fmt.Errorf("%w: %s and %s", ErrDimension, A.d.name, X.d.name)
		}
		rows := A.d.rowMaps()
		X.d.doNonZero(func(i, j int, v float64) {
			if rows[i] == nil {
				rows[i] = make(map[int]float64)
			}
			rows[i][j] += alpha * v
		})
		A.d.csr = buildCSR(A.d.nr, A.d.nc, rows)
		return nil, nil
	})
	return err
}

// Duplicate is collective and returns an assembled copy of A.
func (A *Mat) Duplicate(name string) (D *Mat, err error) {
	var res any
	if res, err = A.comm.collective(A.sig("Duplicate")+name, func() (any, error) {
		if err := A.readable(); err != nil {
			return nil, err
		}
		dd := A.comm.world.newMatData(name, A.d.nr, A.d.nc)
		dd.csr = buildCSR(dd.nr, dd.nc, A.d.rowMaps())
		dd.assembled = true
		return dd, nil
	}); err != nil {
		return
	}
	D = &Mat{d: res.(*matData), comm: A.comm}
	return
}

// Mult is collective: y = A*x.
func (A *Mat) Mult(x, y *Vec) error {
	_, err := A.comm.collective(A.sig("Mult")+x.sig("")+y.sig(""), func() (any, error) {
		if err := A.readable(); err != nil {
			return nil, err
		}
		if err := x.usable(); err != nil {
			return nil, err
		}
		if err := y.usable(); err != nil {
			return nil, err
		}
		if A.d.nc != x.d.n || A.d.nr != y.d.n {
			return nil, fmt.Errorf("%w: %s is %dx%d, x has %d, y has %d", ErrDimension,
				A.d.name, A.d.nr, A.d.nc, x.d.n, y.d.n)
		}
		out := make([]float64, A.d.nr)
		for i := range out {
			A.d.doRow(i, func(j int, v float64) {
				out[i] += v * x.d.values.AtVec(j)
			})
		}
		for i, v := range out {
			y.d.values.SetVec(i, v)
		}
		return nil, nil
	})
	return err
}

// Destroy is collective. Destroying twice is a no-op.
func (A *Mat) Destroy() error {
	_, err := A.comm.collective(A.sig("Destroy"), func() (any, error) {
		A.d.destroyed = true
		A.d.csr = nil
		A.d.pending = nil
		return nil, nil
	})
	return err
}

func (d *matData) doRow(i int, fn func(j int, v float64)) {
	if d.csr == nil {
		return
	}
	raw := d.csr.RawMatrix()
	for p := raw.Indptr[i]; p < raw.Indptr[i+1]; p++ {
		fn(raw.Ind[p], raw.Data[p])
	}
}

func (d *matData) doNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < d.nr; i++ {
		d.doRow(i, func(j int, v float64) { fn(i, j, v) })
	}
}

// rowMaps unpacks the assembled storage into one map per row.
func (d *matData) rowMaps() (rows []map[int]float64) {
	rows = make([]map[int]float64, d.nr)
	d.doNonZero(func(i, j int, v float64) {
		if rows[i] == nil {
			rows[i] = make(map[int]float64)
		}
		rows[i][j] = v
	})
	return
}

func buildCSR(nr, nc int, rows []map[int]float64) *sparse.CSR {
	var (
		indptr = make([]int, nr+1)
		ind    []int
		data   []float64
		cols   []int
	)
	for i := 0; i < nr; i++ {
		cols = cols[:0]
		for j := range rows[i] {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			ind = append(ind, j)
			data = append(data, rows[i][j])
		}
		indptr[i+1] = len(ind)
	}
	if len(ind) == 0 {
		return nil
	}
	return sparse.NewCSR(nr, nc, indptr, ind, data)
}
