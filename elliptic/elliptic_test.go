package elliptic

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goebfv/la"
	"github.com/notargets/goebfv/mesh"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type linearField func(x [3]float64) float64

// dirichletProblem prescribes p on every boundary node of the mesh.
func dirichletProblem(t *testing.T, m *mesh.Mesh, p linearField) (gd *mesh.GeomData, dof *DOFMap) {
	var err error
	gd, err = mesh.NewGeomData(m)
	require.NoError(t, err)
	values := make(map[int]float64)
	for _, flag := range m.MarkerFlags() {
		values[flag] = 0
	}
	prescribed := PrescribedFromMarkers(m, values)
	for node := range prescribed {
		prescribed[node] = p(m.Coordinates(node))
	}
	dof, err = NewDOFMap(m.NumNodes(), prescribed)
	require.NoError(t, err)
	return
}

func unitPermeability(gd *mesh.GeomData) map[int]float64 {
	K := make(map[int]float64)
	for d := 0; d < gd.NumDomains(); d++ {
		K[gd.DomainFlag(d)] = 1
	}
	return K
}

func distort(m *mesh.Mesh) {
	for i := range m.Vertices {
		x, y := m.Vertices[i][0], m.Vertices[i][1]
		m.Vertices[i][0] = x + 0.1*math.Sin(math.Pi*x)*math.Sin(math.Pi*y)
		m.Vertices[i][1] = y + 0.05*math.Sin(2*math.Pi*x)*math.Sin(math.Pi*y)
	}
}

func TestLinearFieldIsExact(t *testing.T) {
	p2 := func(x [3]float64) float64 { return 2*x[0] - 3*x[1] + 1 }
	p3 := func(x [3]float64) float64 { return 2*x[0] - 3*x[1] + 0.5*x[2] + 1 }
	// Tangential to the x = 0.5 interface, so the flux is continuous for any K
	pTan := func(x [3]float64) float64 { return 1 + 2*x[1] }

	m2, err := mesh.NewStructured2D(mesh.UnitBox(2, 4), mesh.UniformFlag(3300))
	require.NoError(t, err)
	m3, err := mesh.NewStructured3D(mesh.UnitBox(3, 3), mesh.UniformFlag(3300))
	require.NoError(t, err)
	mSplit, err := mesh.NewStructured2D(mesh.UnitBox(2, 4), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	mSplit3, err := mesh.NewStructured3D(mesh.UnitBox(3, 2), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	mDist, err := mesh.NewStructured2D(mesh.UnitBox(2, 5), mesh.UniformFlag(3300))
	require.NoError(t, err)
	distort(mDist)

	for _, tc := range []struct {
		name string
		m    *mesh.Mesh
		p    linearField
		K    map[int]float64
	}{
		{"2D", m2, p2, nil},
		{"3D", m3, p3, nil},
		{"2D two domains", mSplit, pTan, map[int]float64{3300: 1, 3301: 10}},
		{"2D two domains same K", mSplit, p2, map[int]float64{3300: 2, 3301: 2}},
		{"3D two domains", mSplit3, p3, nil},
		{"2D distorted", mDist, p2, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gd, dof := dirichletProblem(t, tc.m, tc.p)
			K := tc.K
			if K == nil {
				K = unitPermeability(gd)
			}
			asm := NewAssembler(la.NewSerialComm(), gd, dof, nil, Config{Permeability: K})
			mv, err := asm.AssembleEFG()
			require.NoError(t, err)
			defer func() { assert.NoError(t, mv.Destroy()) }()

			nr, nc := mv.G.Dims()
			assert.Equal(t, [2]int{dof.NumFree(), dof.NumFree()}, [2]int{nr, nc})
			assert.Equal(t, dof.NumFree(), mv.RHS.Len())
			assert.Equal(t, gd.NumDomains(), mv.NDom)
			for d := 0; d < mv.NDom; d++ {
				nr, nc = mv.E[d].Dims()
				assert.Equal(t, [2]int{dof.NumFree(), gd.NumNodes() * gd.Dimension()}, [2]int{nr, nc})
				nr, nc = mv.F[d].Dims()
				assert.Equal(t, [2]int{mv.FNRows, mv.FNCols}, [2]int{nr, nc})
			}

			p, err := SolvePressure(mv, dof)
			require.NoError(t, err)
			for node, v := range p {
				assert.InDelta(t, tc.p(gd.Coordinates(node)), v, 1e-10, "node %d", node)
			}
		})
	}
}

func TestOperatorConsistency(t *testing.T) {
	m, err := mesh.NewStructured2D(mesh.UnitBox(2, 4), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	distort(m)
	// Constant Dirichlet data: RHS holds the negated coupling to the
	// boundary, which equals the free block row sums
	gd, dof := dirichletProblem(t, m, func([3]float64) float64 { return 1 })
	asm := NewAssembler(la.NewSerialComm(), gd, dof, nil,
		Config{Permeability: map[int]float64{3300: 1, 3301: 4}, DefectCorrection: true})
	mv, err := asm.AssembleEFG()
	require.NoError(t, err)
	defer func() { assert.NoError(t, mv.Destroy()) }()
	assert.Len(t, mv.EF, 2)

	A, err := mv.Operator()
	require.NoError(t, err)
	defer func() { assert.NoError(t, A.Destroy()) }()
	rhs, err := mv.RHS.Values()
	require.NoError(t, err)
	for i := 0; i < dof.NumFree(); i++ {
		cols, vals, err := A.Row(i)
		require.NoError(t, err)
		assert.NotEmpty(t, cols)
		var sum float64
		for _, v := range vals {
			sum += v
		}
		assert.InDelta(t, sum, rhs[i], 1e-12, "row %d", i)
	}

	// Matrix free product matches the formed operator
	comm := mv.G.Comm()
	x := make([]float64, dof.NumFree())
	for i := range x {
		x[i] = math.Sin(float64(i))
	}
	xv, err := comm.NewVecFromValues("x", x)
	require.NoError(t, err)
	y1, err := comm.NewVec("y1", dof.NumFree())
	require.NoError(t, err)
	y2, err := comm.NewVec("y2", dof.NumFree())
	require.NoError(t, err)
	require.NoError(t, mv.Mult(xv, y1))
	require.NoError(t, A.Mult(xv, y2))
	v1, err := y1.Values()
	require.NoError(t, err)
	v2, err := y2.Values()
	require.NoError(t, err)
	assert.InDeltaSlice(t, v2, v1, 1e-12)
	for _, v := range []*la.Vec{xv, y1, y2} {
		assert.NoError(t, v.Destroy())
	}
}

func denseSystem(t *testing.T, mv *MatVec) (A *mat.Dense, rhs []float64) {
	op, err := mv.Operator()
	require.NoError(t, err)
	A, err = op.ToDense()
	require.NoError(t, err)
	require.NoError(t, op.Destroy())
	rhs, err = mv.RHS.Values()
	require.NoError(t, err)
	return
}

func TestAssemblyIsRepeatable(t *testing.T) {
	m, err := mesh.NewStructured3D(mesh.UnitBox(3, 2), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	gd, dof := dirichletProblem(t, m, func(x [3]float64) float64 { return x[0] + x[2] })
	for _, adaptive := range []bool{false, true} {
		asm := NewAssembler(la.NewSerialComm(), gd, dof, nil,
			Config{Permeability: map[int]float64{3300: 1, 3301: 3}, Adaptive: adaptive})
		mv1, err := asm.AssembleEFG()
		require.NoError(t, err)
		A1, rhs1 := denseSystem(t, mv1)
		mv2, err := asm.AssembleEFG()
		require.NoError(t, err)
		A2, rhs2 := denseSystem(t, mv2)
		assert.Equal(t, A1.RawMatrix().Data, A2.RawMatrix().Data)
		assert.Equal(t, rhs1, rhs2)
		require.NoError(t, mv1.Destroy())
		require.NoError(t, mv2.Destroy())
	}
}

func TestParallelAssembly(t *testing.T) {
	m, err := mesh.NewStructured2D(mesh.UnitBox(2, 5), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	distort(m)
	gd, dof := dirichletProblem(t, m, func(x [3]float64) float64 { return x[0] * x[1] })
	K := map[int]float64{3300: 1, 3301: 5}
	src := &ManufacturedSource{Forcing: func(int, [3]float64) float64 { return 1 }}

	serial := NewAssembler(la.NewSerialComm(), gd, dof, src, Config{Permeability: K})
	mv, err := serial.AssembleEFG()
	require.NoError(t, err)
	Aser, rhsSer := denseSystem(t, mv)
	pSer, err := SolvePressure(mv, dof)
	require.NoError(t, err)
	require.NoError(t, mv.Destroy())

	for _, ranks := range []int{2, 3} {
		w, err := la.NewWorld(ranks)
		require.NoError(t, err)
		var (
			Apar   *mat.Dense
			rhsPar []float64
			pPar   [][]float64 = make([][]float64, ranks)
		)
		err = w.Run(context.Background(), func(ctx context.Context, c *la.Comm) error {
			asm := NewAssembler(c, gd, dof, src, Config{Permeability: K})
			mv, err := asm.AssembleEFG()
			if err != nil {
				return err
			}
			op, err := mv.Operator()
			if err != nil {
				return err
			}
			if c.Rank() == 0 {
				if Apar, err = op.ToDense(); err != nil {
					return err
				}
				if rhsPar, err = mv.RHS.Values(); err != nil {
					return err
				}
			}
			if err = op.Destroy(); err != nil {
				return err
			}
			if pPar[c.Rank()], err = SolvePressure(mv, dof); err != nil {
				return err
			}
			return mv.Destroy()
		})
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(Aser, Apar, 1e-12), "ranks %d", ranks)
		assert.InDeltaSlice(t, rhsSer, rhsPar, 1e-12)
		for r := 0; r < ranks; r++ {
			assert.InDeltaSlice(t, pSer, pPar[r], 1e-10)
		}
	}
}

// pointGeom has unit control volumes and no edges.
type pointGeom struct {
	dim, np, ndom int
	vol           []float64
}

func (g *pointGeom) Dimension() int { return g.dim }
func (g *pointGeom) NumNodes() int { return g.np }
func (g *pointGeom) NumDomains() int { return g.ndom }
func (g *pointGeom) DomainFlag(d int) int { return 3300 + d }
func (g *pointGeom) Edges(int) []mesh.Edge { return nil }
func (g *pointGeom) BoundaryFaces(int) []mesh.Face { return nil }
func (g *pointGeom) Volume(_, node int) float64 { return g.NodeVolume(node) }
func (g *pointGeom) NodeVolume(node int) float64 {
	if g.vol != nil {
		return g.vol[node]
	}
	return 1
}
func (g *pointGeom) Coordinates(node int) [3]float64 { return [3]float64{float64(node)} }

func wellRHS(t *testing.T, ws *WellSource, dof *DOFMap, geom Geometry) ([]float64, error) {
	comm := la.NewSerialComm()
	rhs, err := comm.NewVec("rhs", dof.NumFree())
	require.NoError(t, err)
	defer func() { assert.NoError(t, rhs.Destroy()) }()
	if err = ws.Contribute(rhs, dof, geom); err != nil {
		return nil, err
	}
	require.NoError(t, rhs.Assemble())
	return rhs.Values()
}

func TestWellSource(t *testing.T) {
	geom := &pointGeom{dim: 2, np: 6, ndom: 1}
	dof, err := NewDOFMap(6, map[int]float64{4: 0, 5: 0})
	require.NoError(t, err)
	{ // Equal volumes share the rate equally
		rhs, err := wellRHS(t, &WellSource{Wells: []Well{{Flag: 10, FlowRate: 100, Nodes: []int{0, 1, 2, 3}}}}, dof, geom)
		require.NoError(t, err)
		assert.Equal(t, []float64{25, 25, 25, 25}, rhs)
	}
	{ // Repeated nodes count once
		rhs, err := wellRHS(t, &WellSource{Wells: []Well{{Flag: 10, FlowRate: 100, Nodes: []int{3, 0, 1, 1, 2, 3}}}}, dof, geom)
		require.NoError(t, err)
		assert.Equal(t, []float64{25, 25, 25, 25}, rhs)
	}
	{ // Prescribed nodes are skipped and carry no volume
		rhs, err := wellRHS(t, &WellSource{Wells: []Well{{Flag: 10, FlowRate: 100, Nodes: []int{1, 4}}}}, dof, geom)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 100, 0, 0}, rhs)
	}
	{ // Explicit total volume and volume weighting
		g := &pointGeom{dim: 2, np: 6, ndom: 1, vol: []float64{1, 3, 1, 1, 1, 1}}
		rhs, err := wellRHS(t, &WellSource{Wells: []Well{{Flag: 10, FlowRate: -8, Volume: 8, Nodes: []int{0, 1}}}}, dof, g)
		require.NoError(t, err)
		assert.Equal(t, []float64{-1, -3, 0, 0}, rhs)
	}
	{ // Well order does not matter
		w1 := Well{Flag: 10, FlowRate: 3, Nodes: []int{0, 1, 2}}
		w2 := Well{Flag: 11, FlowRate: -7, Nodes: []int{2, 3}}
		a, err := wellRHS(t, &WellSource{Wells: []Well{w1, w2}}, dof, geom)
		require.NoError(t, err)
		b, err := wellRHS(t, &WellSource{Wells: []Well{w2, w1}}, dof, geom)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.InDeltaSlice(t, []float64{1, 1, 1 - 3.5, -3.5}, a, 1e-15)
	}
	{ // Null flow rate
		_, err := wellRHS(t, &WellSource{Wells: []Well{{Flag: 10, FlowRate: 1e-9, Nodes: []int{0}}}}, dof, geom)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Contains(t, ce.Msg, "flow rate null")
		assert.Equal(t, "sources.go", ce.File[len(ce.File)-len("sources.go"):])
	}
	{ // Strict mode rejects a well with only prescribed nodes
		ws := &WellSource{Wells: []Well{{Flag: 10, FlowRate: 5, Nodes: []int{4, 5}}}}
		rhs, err := wellRHS(t, ws, dof, geom)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0, 0}, rhs)
		ws.Strict = true
		_, err = wellRHS(t, ws, dof, geom)
		assert.ErrorIs(t, err, ErrConfiguration)
	}
	{
		for _, ws := range []*WellSource{
			{},
			{Wells: []Well{{Flag: 10, FlowRate: 1}}},
			{Wells: []Well{{Flag: 10, FlowRate: 1, Nodes: []int{6}}}},
		} {
			_, err := wellRHS(t, ws, dof, geom)
			assert.ErrorIs(t, err, ErrConfiguration)
		}
	}
}

func TestWellAcrossSubDomains(t *testing.T) {
	m, err := mesh.NewStructured2D(mesh.UnitBox(2, 4), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	gd, err := mesh.NewGeomData(m)
	require.NoError(t, err)
	require.Equal(t, 2, gd.NumDomains())
	dof, err := NewDOFMap(m.NumNodes(), PrescribedFromMarkers(m, map[int]float64{mesh.XMinFlag: 0}))
	require.NoError(t, err)

	// Nodes (0.25,0.5), (0.5,0.5) and (0.75,0.5), the middle one on the interface
	left, mid, right := 11, 12, 13
	require.Equal(t, [3]float64{0.5, 0.5, 0}, gd.Coordinates(mid))
	v0, v1 := gd.Volume(0, mid), gd.Volume(1, mid)
	require.Greater(t, v0, 0.)
	require.Greater(t, v1, 0.)
	assert.InDelta(t, v0+v1, gd.NodeVolume(mid), 1e-15)

	const Qt = 6.
	ws := &WellSource{Wells: []Well{{Flag: 10, FlowRate: Qt, Nodes: []int{left, mid, right, mid}}}}
	rhs, err := wellRHS(t, ws, dof, gd)
	require.NoError(t, err)
	Vt := gd.NodeVolume(left) + v0 + v1 + gd.NodeVolume(right)
	for _, node := range []int{left, mid, right} {
		row, ok := dof.FreeRow(node)
		require.True(t, ok)
		assert.InDelta(t, Qt*gd.NodeVolume(node)/Vt, rhs[row], 1e-14, "node %d", node)
	}
	row, _ := dof.FreeRow(mid)
	assert.InDelta(t, Qt*(v0+v1)/Vt, rhs[row], 1e-14)
	var total float64
	for _, v := range rhs {
		total += v
	}
	assert.InDelta(t, Qt, total, 1e-13)
}

func TestManufacturedSource(t *testing.T) {
	m, err := mesh.NewStructured2D(mesh.UnitBox(2, 4), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	gd, dof := dirichletProblem(t, m, func([3]float64) float64 { return 0 })
	comm := la.NewSerialComm()
	rhs, err := comm.NewVec("rhs", dof.NumFree())
	require.NoError(t, err)
	src := &ManufacturedSource{Forcing: func(int, [3]float64) float64 { return 1 }}
	require.NoError(t, src.Contribute(rhs, dof, gd))
	require.NoError(t, rhs.Assemble())
	vals, err := rhs.Values()
	require.NoError(t, err)
	for row, node := range dof.Free {
		assert.InDelta(t, gd.NodeVolume(node), vals[row], 1e-15)
	}
	require.NoError(t, rhs.Destroy())
	assert.ErrorIs(t, (&ManufacturedSource{}).Contribute(rhs, dof, gd), ErrConfiguration)
}

func TestCrumpton(t *testing.T) {
	alpha := 10.
	// The solution and its normal flux are continuous at x = 0
	for _, y := range []float64{-1, 0, 0.3} {
		assert.InDelta(t, CrumptonSolution(alpha, [3]float64{-1e-12, y}),
			CrumptonSolution(alpha, [3]float64{1e-12, y}), 1e-10)
	}
	f := CrumptonForcing(alpha)
	assert.InDelta(t, 2*alpha, f(CrumptonRightFlag, [3]float64{0, 0}), 1e-14)
	assert.InDelta(t, -alpha*(-1), f(CrumptonLeftFlag, [3]float64{-1, 0}), 1e-14)
	assert.Equal(t, 0., f(1, [3]float64{}))

	// Forced problem on the two material mesh solves and stays bounded
	b := mesh.Box{N: [3]int{6, 6}, Min: [3]float64{-1, -1}, Max: [3]float64{1, 1}}
	m, err := mesh.NewStructured2D(b, mesh.SplitFlag(0, CrumptonLeftFlag, CrumptonRightFlag))
	require.NoError(t, err)
	exact := func(x [3]float64) float64 { return CrumptonSolution(alpha, x) }
	gd, dof := dirichletProblem(t, m, exact)
	asm := NewAssembler(la.NewSerialComm(), gd, dof, &ManufacturedSource{Forcing: f},
		Config{Permeability: map[int]float64{CrumptonLeftFlag: 1, CrumptonRightFlag: alpha}})
	mv, err := asm.AssembleEFG()
	require.NoError(t, err)
	p, err := SolvePressure(mv, dof)
	require.NoError(t, err)
	for _, v := range p {
		assert.False(t, math.IsNaN(v))
	}
	require.NoError(t, mv.Destroy())
}

func TestNodalGradients(t *testing.T) {
	m, err := mesh.NewStructured3D(mesh.UnitBox(3, 2), mesh.SplitFlag(0.5, 1, 2))
	require.NoError(t, err)
	gd, err := mesh.NewGeomData(m)
	require.NoError(t, err)
	p := make([]float64, gd.NumNodes())
	for node := range p {
		x := gd.Coordinates(node)
		p[node] = 2*x[0] - 3*x[1] + 0.5*x[2] + 1
	}
	grad, err := NodalGradients(gd, p)
	require.NoError(t, err)
	for node, g := range grad {
		assert.InDeltaSlice(t, []float64{2, -3, 0.5}, g[:], 1e-12, "node %d", node)
	}
	_, err = NodalGradients(gd, p[1:])
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAssemblyPreconditions(t *testing.T) {
	comm := la.NewSerialComm()
	dof, err := NewDOFMap(4, map[int]float64{3: 1})
	require.NoError(t, err)
	allFixed, err := NewDOFMap(2, map[int]float64{0: 1, 1: 2})
	require.NoError(t, err)
	K := map[int]float64{3300: 1}
	for name, asm := range map[string]*Assembler{
		"no geometry":      NewAssembler(comm, nil, dof, nil, Config{Permeability: K}),
		"no dof":           NewAssembler(comm, &pointGeom{dim: 2, np: 4, ndom: 1}, nil, nil, Config{Permeability: K}),
		"dimension":        NewAssembler(comm, &pointGeom{dim: 1, np: 4, ndom: 1}, dof, nil, Config{Permeability: K}),
		"no domains":       NewAssembler(comm, &pointGeom{dim: 2, np: 4}, dof, nil, Config{Permeability: K}),
		"node count":       NewAssembler(comm, &pointGeom{dim: 2, np: 5, ndom: 1}, dof, nil, Config{Permeability: K}),
		"no free nodes":    NewAssembler(comm, &pointGeom{dim: 2, np: 2, ndom: 1}, allFixed, nil, Config{Permeability: K}),
		"no permeability":  NewAssembler(comm, &pointGeom{dim: 2, np: 4, ndom: 1}, dof, nil, Config{}),
		"bad permeability": NewAssembler(comm, &pointGeom{dim: 2, np: 4, ndom: 1}, dof, nil, Config{Permeability: map[int]float64{3300: 0}}),
	} {
		mv, err := asm.AssembleEFG()
		assert.Nil(t, mv, name)
		assert.ErrorIs(t, err, ErrConfiguration, name)
	}
	_, err = NewDOFMap(3, map[int]float64{3: 0})
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewDOFMap(0, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

// failingSource keeps the vector it was handed and refuses to contribute.
type failingSource struct{ rhs *la.Vec }

func (fs *failingSource) Contribute(rhs *la.Vec, _ *DOFMap, _ Geometry) error {
	fs.rhs = rhs
	return configErrorf("source failed")
}

func TestAssemblyReleasesOnError(t *testing.T) {
	m, err := mesh.NewStructured2D(mesh.UnitBox(2, 3), mesh.SplitFlag(0.5, 3300, 3301))
	require.NoError(t, err)
	gd, dof := dirichletProblem(t, m, func([3]float64) float64 { return 1 })
	{ // Serial
		fs := &failingSource{}
		asm := NewAssembler(la.NewSerialComm(), gd, dof, fs, Config{Permeability: unitPermeability(gd)})
		mv, err := asm.AssembleEFG()
		assert.Nil(t, mv)
		assert.ErrorIs(t, err, ErrConfiguration)
		require.NotNil(t, fs.rhs)
		_, err = fs.rhs.Values()
		assert.ErrorIs(t, err, la.ErrDestroyed)
	}
	{ // Every rank fails the same way and releases its objects
		w, err := la.NewWorld(2)
		require.NoError(t, err)
		sources := []*failingSource{{}, {}}
		err = w.Run(context.Background(), func(ctx context.Context, c *la.Comm) error {
			asm := NewAssembler(c, gd, dof, sources[c.Rank()], Config{Permeability: unitPermeability(gd)})
			_, err := asm.AssembleEFG()
			return err
		})
		assert.ErrorIs(t, err, ErrConfiguration)
		for _, fs := range sources {
			require.NotNil(t, fs.rhs)
			_, err = fs.rhs.Values()
			assert.ErrorIs(t, err, la.ErrDestroyed)
		}
	}
}

func TestDOFMap(t *testing.T) {
	dof, err := NewDOFMap(5, map[int]float64{3: 7, 0: -1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, []int(dof.Free))
	assert.Equal(t, []int{0, 3}, []int(dof.Prescribed))
	assert.Equal(t, []float64{-1, 7}, dof.PrescribedValue)
	row, ok := dof.FreeRow(4)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	assert.False(t, dof.IsFree(3))
	assert.False(t, dof.IsFree(9))
	p, err := dof.Expand([]float64{1, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1, 2, 7, 4}, p)
	_, err = dof.Expand([]float64{1})
	assert.Error(t, err)
}
