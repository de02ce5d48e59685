/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/goebfv/elliptic"
	"github.com/notargets/goebfv/erroranalysis"
)

// AdaptCmd represents the adapt command
var AdaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Solve for pressure and flag the elements to refine or unrefine",
	Long: `
Solves the pressure system, recovers nodal gradients and runs the error
analysis. The elements flagged for adaptation and the nodes of the background
mesh are reported for the remesher.

goebfv adapt -F grid.su2 -I input.yaml`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var p *Problem
		bindProblemFlags(cmd)
		gridFile, _ := cmd.Flags().GetString("gridFile")
		icFile, _ := cmd.Flags().GetString("inputConditionsFile")
		if p, err = LoadProblem(gridFile, icFile); err != nil {
			return
		}
		listAll, _ := cmd.Flags().GetBool("list")
		return runAdapt(cmd, p, listAll, cmd.OutOrStdout())
	},
}

func runAdapt(cmd *cobra.Command, p *Problem, listAll bool, out io.Writer) (err error) {
	var (
		res    *AssemblyResult
		grad   [][3]float64
		ea     erroranalysis.ErrorAnalysis
		fields []erroranalysis.Field
		adapt  bool
		ad     = p.Params.Adaptation
	)
	if !ad.Enabled {
		return fmt.Errorf("adaptation is not enabled in the input parameters")
	}
	for _, name := range ad.Fields {
		switch strings.ToLower(name) {
		case "pressure":
			fields = append(fields, erroranalysis.Pressure)
		default:
			return fmt.Errorf("no %s field available for error analysis", name)
		}
	}
	if res, err = p.Assemble(contextOf(cmd), viper.GetInt("ranks"), true, logger); err != nil {
		return
	}
	if grad, err = elliptic.NodalGradients(p.Geom, res.Pressure); err != nil {
		return
	}
	if ea, err = erroranalysis.New(p.Mesh.Dimension(), logger); err != nil {
		return
	}
	settings := erroranalysis.Settings{
		Tolerance:            ad.Tolerance,
		SingularityTolerance: ad.SingularityTolerance,
		MaxSubdivision:       ad.MaxSubdivision,
	}
	gradient := func(_ erroranalysis.Field, node int) [3]float64 { return grad[node] }
	if adapt, err = erroranalysis.CalculateErrorAnalysis(ea, p.Mesh, settings, gradient,
		fields, ad.SingularElements); err != nil {
		return
	}
	a := ea.Base()
	elements, nodes, err := a.GetRefUnrefElementsList(p.Mesh)
	if err != nil {
		return
	}
	logger.Debug("adaptation",
		zap.Bool("adapt", adapt),
		zap.Float64("h_min", a.HMin()),
		zap.Int("flagged", len(elements)))
	fmt.Fprintf(out, "global error %.6e, average error %.6e, smoothed gradient norm %.6e\n",
		a.GlobalError, a.AverageError, a.SGN)
	fmt.Fprintf(out, "adapt %v: %d elements flagged, %d background mesh nodes, levels in [%d, %d]\n",
		adapt, len(elements), len(nodes), a.MinRefinementFlag, a.MaxRefinementFlag)
	if listAll {
		for _, k := range elements {
			fmt.Fprintf(out, "%d %d %.6e\n", k, a.Elements[k].Level, a.Elements[k].HNew)
		}
	}
	return
}

func init() {
	rootCmd.AddCommand(AdaptCmd)
	addProblemFlags(AdaptCmd)
	AdaptCmd.Flags().BoolP("list", "l", false, "list the flagged elements with their level and requested height")
}
