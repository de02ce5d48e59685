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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/goebfv/elliptic"
	"github.com/notargets/goebfv/mesh"
)

type GenerateOptions struct {
	Dim      int
	N        int
	Min, Max float64
	Split    bool // Two sub-domains split at the middle of the box in x
	Output   string
}

// GenerateCmd represents the generate command
var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a structured simplex mesh of a box in SU2 format",
	Long: `
Splits a box into triangles or tetrahedra and tags its sides with the flags
101 (x min) to 106 (z max). With --split the elements left and right of the
box middle get the sub-domain flags 3300 and 3301.

goebfv generate --dim 2 -N 16 --min -1 --max 1 --split -o crumpton.su2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := &GenerateOptions{}
		opt.Dim, _ = cmd.Flags().GetInt("dim")
		opt.N, _ = cmd.Flags().GetInt("cells")
		opt.Min, _ = cmd.Flags().GetFloat64("min")
		opt.Max, _ = cmd.Flags().GetFloat64("max")
		opt.Split, _ = cmd.Flags().GetBool("split")
		opt.Output, _ = cmd.Flags().GetString("output")
		m, err := Generate(opt)
		if err != nil {
			return err
		}
		logger.Info("mesh generated",
			zap.Int("nodes", m.NumNodes()),
			zap.Int("elements", m.NumElements()),
			zap.String("file", opt.Output))
		return nil
	},
}

func Generate(opt *GenerateOptions) (m *mesh.Mesh, err error) {
	if len(opt.Output) == 0 {
		return nil, fmt.Errorf("must supply an output file (-o, --output)")
	}
	if opt.Dim != 2 && opt.Dim != 3 {
		return nil, fmt.Errorf("mesh dimension must be 2 or 3, have %d", opt.Dim)
	}
	b := mesh.UnitBox(opt.Dim, opt.N)
	for i := 0; i < opt.Dim; i++ {
		b.Min[i], b.Max[i] = opt.Min, opt.Max
	}
	flag := mesh.UniformFlag(mesh.DefaultDomainFlag)
	if opt.Split {
		flag = mesh.SplitFlag(0.5*(opt.Min+opt.Max), elliptic.CrumptonLeftFlag, elliptic.CrumptonRightFlag)
	}
	if opt.Dim == 2 {
		m, err = mesh.NewStructured2D(b, flag)
	} else {
		m, err = mesh.NewStructured3D(b, flag)
	}
	if err != nil {
		return nil, err
	}
	if err = mesh.WriteSU2File(expandPath(opt.Output), m); err != nil {
		return nil, err
	}
	return
}

func init() {
	rootCmd.AddCommand(GenerateCmd)
	GenerateCmd.Flags().Int("dim", 2, "mesh dimension, 2 or 3")
	GenerateCmd.Flags().IntP("cells", "N", 8, "number of cells per direction")
	GenerateCmd.Flags().Float64("min", 0, "lower corner coordinate in every direction")
	GenerateCmd.Flags().Float64("max", 1, "upper corner coordinate in every direction")
	GenerateCmd.Flags().Bool("split", false, "two sub-domains split at the middle in x")
	GenerateCmd.Flags().StringP("output", "o", "", "SU2 file to write")
}
