package cmd

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/goebfv/mesh"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const wellsInput = `
Title: Line drive
Permeability:
  3300: 2.
BCs:
  Dirichlet:
    101:
      P: 0.
  Well:
    102:
      Q: 1.
Adaptation:
  Enabled: true
  Tolerance: 0.05
  MaxSubdivision: 2
`

const manufacturedInput = `
Title: Crumpton
SourceTerm: manufactured
Permeability:
  3300: 1.
  3301: 1.
BCs:
  Dirichlet:
    101: {P: 0}
    102: {P: 0}
    103: {P: 0}
    104: {P: 0}
`

func writeProblem(t *testing.T, opt *GenerateOptions, input string) (gridFile, icFile string) {
	dir := t.TempDir()
	gridFile = filepath.Join(dir, "grid.su2")
	icFile = filepath.Join(dir, "input.yaml")
	opt.Output = gridFile
	_, err := Generate(opt)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(icFile, []byte(input), 0644))
	return
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	{ // 2D, two sub-domains
		opt := &GenerateOptions{Dim: 2, N: 4, Min: -1, Max: 1, Split: true,
			Output: filepath.Join(dir, "split.su2")}
		_, err := Generate(opt)
		require.NoError(t, err)
		m, err := mesh.ReadSU2File(opt.Output)
		require.NoError(t, err)
		assert.Equal(t, 25, m.NumNodes())
		assert.Equal(t, 32, m.NumElements())
		assert.Equal(t, []int{3300, 3301}, m.DomainFlags())
		assert.Equal(t, []int{101, 102, 103, 104}, m.MarkerFlags())
	}
	{ // 3D
		opt := &GenerateOptions{Dim: 3, N: 2, Max: 1, Output: filepath.Join(dir, "cube.su2")}
		m, err := Generate(opt)
		require.NoError(t, err)
		assert.Equal(t, 27, m.NumNodes())
		assert.Equal(t, 48, m.NumElements())
	}
	for _, dim := range []int{0, 1, 4} {
		_, err := Generate(&GenerateOptions{Dim: dim, N: 2, Max: 1, Output: filepath.Join(dir, "x.su2")})
		assert.ErrorContains(t, err, "dimension")
		assert.NoFileExists(t, filepath.Join(dir, "x.su2"))
	}
	_, err := Generate(&GenerateOptions{Dim: 2, N: 0, Max: 1, Output: filepath.Join(dir, "x.su2")})
	assert.Error(t, err)
	_, err = Generate(&GenerateOptions{Dim: 2, N: 2, Max: 1})
	assert.Error(t, err)
}

func TestLoadProblem(t *testing.T) {
	gridFile, icFile := writeProblem(t, &GenerateOptions{Dim: 2, N: 4, Max: 1}, wellsInput)
	p, err := LoadProblem(gridFile, icFile)
	require.NoError(t, err)
	assert.Equal(t, 5, p.DOF.NumPrescribed())
	assert.Equal(t, 20, p.DOF.NumFree())
	assert.Equal(t, 1, p.Geom.NumDomains())

	_, err = LoadProblem("", icFile)
	assert.Error(t, err)
	_, err = LoadProblem(gridFile, "")
	assert.Error(t, err)
	_, err = LoadProblem(filepath.Join(t.TempDir(), "missing.su2"), icFile)
	assert.Error(t, err)
}

func TestAssembleAcrossRanks(t *testing.T) {
	gridFile, icFile := writeProblem(t, &GenerateOptions{Dim: 2, N: 6, Max: 1}, wellsInput)
	p, err := LoadProblem(gridFile, icFile)
	require.NoError(t, err)

	serial, err := p.Assemble(context.Background(), 1, true, logger)
	require.NoError(t, err)
	require.Len(t, serial.Pressure, p.Mesh.NumNodes())
	assert.Greater(t, serial.RHSNorm, 0.)
	for _, node := range p.Mesh.MarkedNodes(101) {
		assert.Equal(t, 0., serial.Pressure[node])
	}
	for _, node := range p.Mesh.MarkedNodes(102) {
		assert.NotZero(t, serial.Pressure[node])
	}

	for _, ranks := range []int{2, 3} {
		res, err := p.Assemble(context.Background(), ranks, true, logger)
		require.NoError(t, err)
		assert.Equal(t, serial.NNZ, res.NNZ)
		assert.InDelta(t, serial.RHSNorm, res.RHSNorm, 1e-12)
		assert.InDeltaSlice(t, serial.Pressure, res.Pressure, 1e-10)
	}
}

func TestRunAssembleManufactured(t *testing.T) {
	t.Cleanup(viper.Reset)
	gridFile, icFile := writeProblem(t, &GenerateOptions{Dim: 2, N: 8, Min: -1, Max: 1, Split: true},
		manufacturedInput)
	p, err := LoadProblem(gridFile, icFile)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Geom.NumDomains())

	viper.Set("ranks", 2)
	viper.Set("solve", true)
	var out bytes.Buffer
	require.NoError(t, runAssemble(AssembleCmd, p, &out))
	assert.Contains(t, out.String(), "free nodes 49, prescribed nodes 32")
	assert.Contains(t, out.String(), "max nodal error")

	res, err := p.Assemble(context.Background(), 1, true, logger)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(p.MaxError(res.Pressure)))
}

func TestRunAdapt(t *testing.T) {
	t.Cleanup(viper.Reset)
	gridFile, icFile := writeProblem(t, &GenerateOptions{Dim: 2, N: 4, Max: 1}, wellsInput)
	p, err := LoadProblem(gridFile, icFile)
	require.NoError(t, err)

	viper.Set("ranks", 1)
	var out bytes.Buffer
	require.NoError(t, runAdapt(AdaptCmd, p, true, &out))
	assert.Contains(t, out.String(), "global error")
	assert.Contains(t, out.String(), "elements flagged")

	p.Params.Adaptation.Fields = []string{"saturation"}
	assert.Error(t, runAdapt(AdaptCmd, p, false, &out))
	p.Params.Adaptation.Enabled = false
	assert.Error(t, runAdapt(AdaptCmd, p, false, &out))
}
