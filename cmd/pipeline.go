package cmd

import (
	"context"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/notargets/goebfv/InputParameters"
	"github.com/notargets/goebfv/elliptic"
	"github.com/notargets/goebfv/la"
	"github.com/notargets/goebfv/mesh"
)

// Problem is a mesh with its parameters, ready for assembly.
type Problem struct {
	Mesh   *mesh.Mesh
	Geom   *mesh.GeomData
	Params *InputParameters.SimulatorParameters
	DOF    *elliptic.DOFMap
	Source elliptic.SourceTerm
}

func LoadProblem(gridFile, icFile string) (p *Problem, err error) {
	var data []byte
	if len(gridFile) == 0 {
		return nil, fmt.Errorf("must supply a grid file (-F, --gridFile) in SU2 format")
	}
	if len(icFile) == 0 {
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format:%s",
			exampleFile)
	}
	p = &Problem{Params: &InputParameters.SimulatorParameters{}}
	if p.Mesh, err = mesh.ReadSU2File(expandPath(gridFile)); err != nil {
		return nil, err
	}
	if data, err = os.ReadFile(expandPath(icFile)); err != nil {
		return nil, err
	}
	if err = p.Params.Parse(data); err != nil {
		return nil, err
	}
	if err = p.setup(); err != nil {
		return nil, err
	}
	return
}

const exampleFile = `
########################################
Title: "Test Case"
SourceTerm: wells # Can be "manufactured"
Permeability:
  3300: 1.
BCs:
  Dirichlet:
    101:
      P: 0.
  Well:
    102:
      Q: 100.
########################################
`

func (p *Problem) setup() (err error) {
	var (
		ip         = p.Params
		prescribed = elliptic.PrescribedFromMarkers(p.Mesh, ip.DirichletValues())
	)
	if p.Geom, err = mesh.NewGeomData(p.Mesh); err != nil {
		return
	}
	switch ip.SourceTerm {
	case InputParameters.SourceManufactured:
		// Boundary values come from the exact solution
		for node := range prescribed {
			prescribed[node] = elliptic.CrumptonSolution(ip.Alpha, p.Mesh.Coordinates(node))
		}
		p.Source = &elliptic.ManufacturedSource{Forcing: elliptic.CrumptonForcing(ip.Alpha)}
	default:
		p.Source = &elliptic.WellSource{Wells: ip.Wells(p.Mesh), Strict: ip.Debug}
	}
	p.DOF, err = elliptic.NewDOFMap(p.Mesh.NumNodes(), prescribed)
	return
}

type AssemblyResult struct {
	NumFree, NNZ int
	RHSNorm      float64
	Pressure     []float64 // Set when solved
}

// Assemble runs the assembly, and the solve when asked, on a world of ranks.
func (p *Problem) Assemble(ctx context.Context, ranks int, solve bool, log *zap.Logger) (res *AssemblyResult, err error) {
	var w *la.World
	if w, err = la.NewWorld(ranks); err != nil {
		return
	}
	res = &AssemblyResult{NumFree: p.DOF.NumFree()}
	err = w.Run(ctx, func(ctx context.Context, c *la.Comm) (err error) {
		var (
			mv  *elliptic.MatVec
			A   *la.Mat
			rhs []float64
			nnz int
			pr  []float64
		)
		asm := elliptic.NewAssembler(c, p.Geom, p.DOF, p.Source, elliptic.Config{
			Permeability:     p.Params.Permeability,
			DefectCorrection: p.Params.DefectCorrection,
			Logger:           log,
		})
		if mv, err = asm.AssembleEFG(); err != nil {
			return
		}
		if A, err = mv.Operator(); err != nil {
			return
		}
		if nnz, err = A.NNZ(); err != nil {
			return
		}
		if err = A.Destroy(); err != nil {
			return
		}
		if solve {
			if pr, err = elliptic.SolvePressure(mv, p.DOF); err != nil {
				return
			}
		}
		if rhs, err = mv.RHS.Values(); err != nil {
			return
		}
		if c.Rank() == 0 {
			res.NNZ, res.Pressure = nnz, pr
			for _, v := range rhs {
				res.RHSNorm += v * v
			}
			res.RHSNorm = math.Sqrt(res.RHSNorm)
		}
		return mv.Destroy()
	})
	if err != nil {
		return nil, err
	}
	return
}

// MaxError returns the largest nodal deviation from the manufactured solution.
func (p *Problem) MaxError(pressure []float64) (maxErr float64) {
	for node, v := range pressure {
		exact := elliptic.CrumptonSolution(p.Params.Alpha, p.Mesh.Coordinates(node))
		maxErr = math.Max(maxErr, math.Abs(v-exact))
	}
	return
}
