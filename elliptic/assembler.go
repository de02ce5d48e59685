package elliptic

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notargets/goebfv/la"
	"github.com/notargets/goebfv/utils"
)

type Config struct {
	// Permeability by sub-domain flag
	Permeability map[int]float64
	// Adaptive meshes renumber nodes between calls, so the free block index
	// sets are rebuilt on every assembly
	Adaptive bool
	// DefectCorrection keeps the free block of every E*F product in MatVec.EF
	DefectCorrection bool
	Logger           *zap.Logger
}

// Assembler builds the reduced pressure system. One Assembler is a session:
// it is reused across time steps and must not run concurrent assemblies.
type Assembler struct {
	comm   *la.Comm
	geom   Geometry
	dof    *DOFMap
	source SourceTerm
	cfg    Config
	log    *zap.Logger

	rowsE, colsE, rowsF, colsF utils.Index
	haveIndexSets              bool
}

func NewAssembler(comm *la.Comm, geom Geometry, dof *DOFMap, source SourceTerm, cfg Config) *Assembler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		comm:   comm,
		geom:   geom,
		dof:    dof,
		source: source,
		cfg:    cfg,
		log:    log.With(zap.Int("rank", comm.Rank())),
	}
}

// SetDOFMap replaces the free/prescribed split, for use after remeshing.
func (a *Assembler) SetDOFMap(geom Geometry, dof *DOFMap) {
	a.geom, a.dof = geom, dof
	a.haveIndexSets = false
}

func (a *Assembler) checkPreconditions() error {
	switch {
	case a.geom == nil:
		return configErrorf("no geometry")
	case a.dof == nil:
		return configErrorf("no free/prescribed node classification")
	}
	var (
		dim   = a.geom.Dimension()
		np    = a.geom.NumNodes()
		ndom  = a.geom.NumDomains()
		numGF = a.dof.NumFree()
	)
	switch {
	case dim != 2 && dim != 3:
		return configErrorf("mesh dimension must be 2 or 3, have %d", dim)
	case np <= 0:
		return configErrorf("number of nodes must be positive, have %d", np)
	case numGF <= 0:
		return configErrorf("number of free nodes must be positive, have %d", numGF)
	case ndom <= 0:
		return configErrorf("number of sub-domains must be positive, have %d", ndom)
	case a.dof.NumNodes != np:
		return configErrorf("node classification covers %d nodes, mesh has %d", a.dof.NumNodes, np)
	}
	return nil
}

func (a *Assembler) permeability(flag int) (K float64, err error) {
	var ok bool
	if K, ok = a.cfg.Permeability[flag]; !ok {
		return 0, configErrorf("no permeability for sub-domain flag %d", flag)
	}
	if K <= 0 {
		return 0, configErrorf("permeability for sub-domain flag %d must be positive, have %g", flag, K)
	}
	return
}

// setIndexSets builds the row and column sets that carve the free blocks of
// E (free rows, all gradient columns) and F (all gradient rows, free columns).
func (a *Assembler) setIndexSets() {
	if a.haveIndexSets && !a.cfg.Adaptive {
		return
	}
	var (
		dim = a.geom.Dimension()
		np  = a.geom.NumNodes()
	)
	a.rowsE = a.dof.Free
	a.colsE = utils.NewRange(0, np*dim-1)
	a.rowsF = utils.NewRange(0, np*dim-1)
	a.colsF = a.dof.Free
	a.haveIndexSets = true
}

// AssembleEFG is collective. It builds E and F for every sub-domain and the
// global G, reduces them to the free nodes and returns the reduced system.
func (a *Assembler) AssembleEFG() (mv *MatVec, err error) {
	start := time.Now()
	if err = a.checkPreconditions(); err != nil {
		return
	}
	var (
		dim   = a.geom.Dimension()
		np    = a.geom.NumNodes()
		ndom  = a.geom.NumDomains()
		numGF = a.dof.NumFree()
		G     *la.Mat
		E     = make([]*la.Mat, ndom)
		F     = make([]*la.Mat, ndom)
		sys   *MatVec
	)
	defer func() {
		if err == nil {
			return
		}
		// Release what was built. Destroying twice is a no-op.
		for _, M := range append(append([]*la.Mat{G}, E...), F...) {
			if M != nil {
				_ = M.Destroy()
			}
		}
		if sys != nil {
			_ = sys.Destroy()
		}
		mv = nil
	}()
	a.setIndexSets()
	if G, err = a.comm.NewMat("G", np, np); err != nil {
		return
	}
	for d := 0; d < ndom; d++ {
		var K float64
		if K, err = a.permeability(a.geom.DomainFlag(d)); err != nil {
			return
		}
		if E[d], err = a.comm.NewMat(fmt.Sprintf("E%d", d), np, np*dim); err != nil {
			return
		}
		if F[d], err = a.comm.NewMat(fmt.Sprintf("F%d", d), np*dim, np); err != nil {
			return
		}
		if err = a.assembleDomain(d, K, E[d], F[d], G); err != nil {
			return
		}
	}
	for d := 0; d < ndom; d++ {
		if err = E[d].Assemble(); err != nil {
			return
		}
		if err = F[d].Assemble(); err != nil {
			return
		}
	}
	if err = G.Assemble(); err != nil {
		return
	}

	mv = &MatVec{
		NDom:   ndom,
		FNRows: np * dim,
		FNCols: numGF,
		E:      make([]*la.Mat, ndom),
		F:      make([]*la.Mat, ndom),
	}
	sys = mv
	if mv.RHS, err = a.comm.NewVec("RHS", numGF); err != nil {
		return nil, err
	}
	// G is global: its free block, its Dirichlet part and the sources go in once
	if mv.G, err = a.setSOE(G, true, mv.RHS, a.source); err != nil {
		return nil, err
	}
	for d := 0; d < ndom; d++ {
		if err = a.reduceDomain(d, E[d], F[d], mv); err != nil {
			return nil, err
		}
	}
	if mv.Output, err = a.comm.NewVec("Output", numGF); err != nil {
		return nil, err
	}
	a.log.Debug("matrices assembled",
		zap.Int("dim", dim),
		zap.Int("nodes", np),
		zap.Int("free", numGF),
		zap.Int("domains", ndom),
		zap.Duration("elapsed", time.Since(start)))
	return
}

// assembleDomain inserts this rank's share of the edges and boundary faces of
// sub-domain d.
func (a *Assembler) assembleDomain(d int, K float64, E, F, G *la.Mat) (err error) {
	var (
		dim   = a.geom.Dimension()
		edges = a.geom.Edges(d)
		faces = a.geom.BoundaryFaces(d)
		vol   = func(node int) float64 { return a.geom.Volume(d, node) }
		into  = func(M *la.Mat) adder {
			return func(row, col int, v float64) {
				if err == nil {
					err = M.AddValue(row, col, v)
				}
			}
		}
		addE, addF, addG = into(E), into(F), into(G)
	)
	lo, hi := a.share(len(edges))
	for _, e := range edges[lo:hi] {
		divergenceE(dim, e, K, addE)
		divergenceG(e, K, addG)
		gradientFEdges(dim, e, vol(e.I), vol(e.J), addF)
	}
	lo, hi = a.share(len(faces))
	for _, f := range faces[lo:hi] {
		gradientFBdry(dim, f, vol, addF)
	}
	return
}

func (a *Assembler) share(n int) (lo, hi int) {
	pm := utils.NewPartitionMap(a.comm.Size(), n)
	return pm.GetBucketRange(a.comm.Rank())
}

// reduceDomain folds the Dirichlet part of E*F into the RHS and keeps the
// free blocks of E and F. The full size matrices are destroyed.
func (a *Assembler) reduceDomain(d int, E, F *la.Mat, mv *MatVec) (err error) {
	var (
		EF, lhs *la.Mat
		efRHS   *la.Vec
	)
	defer func() {
		if err != nil && EF != nil {
			_ = EF.Destroy()
		}
		if err != nil && efRHS != nil {
			_ = efRHS.Destroy()
		}
	}()
	if EF, err = E.MatMatMult(fmt.Sprintf("EF%d", d), F); err != nil {
		return
	}
	if efRHS, err = a.comm.NewVec(fmt.Sprintf("EF%d_rhs", d), a.dof.NumFree()); err != nil {
		return
	}
	if lhs, err = a.setSOE(EF, a.cfg.DefectCorrection, efRHS, nil); err != nil {
		return
	}
	if lhs != nil {
		mv.EF = append(mv.EF, lhs)
	}
	if err = mv.RHS.AXPY(1, efRHS); err != nil {
		return
	}
	if err = efRHS.Destroy(); err != nil {
		return
	}
	if mv.E[d], err = E.SubMatrix(fmt.Sprintf("E%d_f", d), a.rowsE, a.colsE); err != nil {
		return
	}
	if err = E.Destroy(); err != nil {
		return
	}
	if mv.F[d], err = F.SubMatrix(fmt.Sprintf("F%d_f", d), a.rowsF, a.colsF); err != nil {
		return
	}
	return F.Destroy()
}

/*
setSOE reduces the full operator A to the free nodes:
  - the free block A[free][free] is returned when wantLHS is set,
  - rhs[i] -= sum_j A[free_i][prescribed_j] * value_j over the owned rows,
  - the source term, if any, is added before rhs is assembled.

A is destroyed.
*/
func (a *Assembler) setSOE(A *la.Mat, wantLHS bool, rhs *la.Vec, source SourceTerm) (lhs *la.Mat, err error) {
	if a.dof == nil || len(a.dof.Free) == 0 {
		return nil, configErrorf("reduction needs free node index sets")
	}
	var (
		dof    = a.dof
		rhsMat *la.Mat
		cols   []int
		vals   []float64
	)
	defer func() {
		if err == nil {
			return
		}
		for _, M := range []*la.Mat{lhs, rhsMat} {
			if M != nil {
				_ = M.Destroy()
			}
		}
		lhs = nil
	}()
	if wantLHS {
		if lhs, err = A.SubMatrix(A.Name()+"_ff", dof.Free, dof.Free); err != nil {
			return
		}
	}
	if rhsMat, err = A.SubMatrix(A.Name()+"_fp", dof.Free, dof.Prescribed); err != nil {
		return
	}
	if err = A.Destroy(); err != nil {
		return
	}
	lo, hi := rhsMat.OwnershipRange()
	for i := lo; i < hi; i++ {
		if cols, vals, err = rhsMat.Row(i); err != nil {
			return
		}
		if len(cols) == 0 {
			continue
		}
		var sum float64
		for n, j := range cols {
			sum += vals[n] * dof.PrescribedValue[j]
		}
		if err = rhs.AddValue(i, -sum); err != nil {
			return
		}
	}
	if source != nil {
		if err = source.Contribute(rhs, dof, a.geom); err != nil {
			return
		}
	}
	if err = rhs.Assemble(); err != nil {
		return
	}
	err = rhsMat.Destroy()
	return
}
