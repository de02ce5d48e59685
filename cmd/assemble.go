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
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/goebfv/InputParameters"
)

// AssembleCmd represents the assemble command
var AssembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble the reduced pressure system of a mesh, and optionally solve it",
	Long: `
Reads an SU2 grid and a YAML input file, assembles the edge based finite volume
operator on a group of ranks and reports the reduced system.

goebfv assemble -F grid.su2 -I input.yaml --ranks 4 --solve`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var p *Problem
		bindProblemFlags(cmd)
		gridFile, _ := cmd.Flags().GetString("gridFile")
		icFile, _ := cmd.Flags().GetString("inputConditionsFile")
		if p, err = LoadProblem(gridFile, icFile); err != nil {
			return
		}
		if viper.GetBool("verbose") {
			p.Params.Print()
		}
		return runAssemble(cmd, p, cmd.OutOrStdout())
	},
}

func runAssemble(cmd *cobra.Command, p *Problem, out io.Writer) (err error) {
	var (
		res   *AssemblyResult
		ranks = viper.GetInt("ranks")
		solve = viper.GetBool("solve")
	)
	logger.Info("assembling",
		zap.Int("nodes", p.Mesh.NumNodes()),
		zap.Int("elements", p.Mesh.NumElements()),
		zap.Int("domains", p.Geom.NumDomains()),
		zap.Int("ranks", ranks))
	if res, err = p.Assemble(contextOf(cmd), ranks, solve, logger); err != nil {
		return
	}
	fmt.Fprintf(out, "free nodes %d, prescribed nodes %d, operator nonzeros %d, |RHS| %.6e\n",
		res.NumFree, p.DOF.NumPrescribed(), res.NNZ, res.RHSNorm)
	if solve {
		lo, hi := res.Pressure[0], res.Pressure[0]
		for _, v := range res.Pressure {
			lo, hi = min(lo, v), max(hi, v)
		}
		fmt.Fprintf(out, "pressure in [%.6e, %.6e]\n", lo, hi)
		if p.Params.SourceTerm == InputParameters.SourceManufactured {
			fmt.Fprintf(out, "max nodal error %.6e\n", p.MaxError(res.Pressure))
		}
	}
	return
}

func init() {
	rootCmd.AddCommand(AssembleCmd)
	addProblemFlags(AssembleCmd)
	AssembleCmd.Flags().Bool("solve", false, "solve the reduced system with the dense reference solver")
}

func addProblemFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("gridFile", "F", "", "Grid file to read in SU2 (.su2) format")
	cmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Permeability\n\t- BCs (Dirichlet pressure, wells)")
	cmd.Flags().IntP("ranks", "n", 1, "number of ranks sharing the assembly")
}

// bindProblemFlags binds the flags of the running command to viper.
func bindProblemFlags(cmd *cobra.Command) {
	for _, name := range []string{"ranks", "solve"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = viper.BindPFlag(name, f)
		}
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
