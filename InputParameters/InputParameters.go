package InputParameters

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/goebfv/elliptic"
	"github.com/notargets/goebfv/types"
	"github.com/notargets/goebfv/utils"
)

var ErrInvalidParameters = errors.New("invalid input parameters")

type Adaptation struct {
	Enabled              bool     `json:"Enabled"`
	Tolerance            float64  `json:"Tolerance"`
	SingularityTolerance float64  `json:"SingularityTolerance"`
	MaxSubdivision       int      `json:"MaxSubdivision"`
	Fields               []string `json:"Fields"` // pressure, saturation
	SingularElements     []int    `json:"SingularElements"`
}

// Parameters obtained from the YAML input file
type SimulatorParameters struct {
	Title            string                                `json:"Title"`
	SourceTerm       string                                `json:"SourceTerm"` // "wells" or "manufactured"
	Alpha            float64                               `json:"Alpha"`      // Manufactured two material problem
	DefectCorrection bool                                  `json:"DefectCorrection"`
	Debug            bool                                  `json:"Debug"`
	Permeability     map[int]float64                       `json:"Permeability"` // By sub-domain flag
	BCs              map[string]map[int]map[string]float64 `json:"BCs"`          // First key is BC name/type, second is flag, third is parameter name
	WellNodes        map[int][]int                         `json:"WellNodes"`    // Nodes of a well flag in addition to marked ones
	Adaptation       Adaptation                            `json:"Adaptation"`
}

const (
	SourceWells        = "wells"
	SourceManufactured = "manufactured"
)

func (ip *SimulatorParameters) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	ip.SourceTerm = strings.ToLower(strings.TrimSpace(ip.SourceTerm))
	if ip.SourceTerm == "" {
		ip.SourceTerm = SourceWells
	}
	if ip.SourceTerm == SourceManufactured && ip.Alpha == 0 {
		ip.Alpha = 1
	}
	if len(ip.Adaptation.Fields) == 0 {
		ip.Adaptation.Fields = []string{"pressure"}
	}
	return ip.Validate()
}

func (ip *SimulatorParameters) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, args...))
	}
	switch ip.SourceTerm {
	case SourceWells, SourceManufactured:
	default:
		return invalid("unknown source term [%s]", ip.SourceTerm)
	}
	if len(ip.Permeability) == 0 {
		return invalid("no permeability given")
	}
	for flag, K := range ip.Permeability {
		if !(K > 0) {
			return invalid("permeability of sub-domain %d must be positive, have %g", flag, K)
		}
	}
	for name, bcs := range ip.BCs {
		bc, err := types.NewBCFLAG(name)
		if err != nil {
			return invalid("%v", err)
		}
		for flag, params := range bcs {
			switch bc {
			case types.BC_Dirichlet:
				if _, ok := params["P"]; !ok {
					return invalid("Dirichlet BC %d needs a pressure P", flag)
				}
			case types.BC_Well:
				if _, ok := params["Q"]; !ok {
					return invalid("well %d needs a flow rate Q", flag)
				}
			}
		}
	}
	if ip.SourceTerm == SourceWells && len(ip.bcsOf(types.BC_Well)) == 0 {
		return invalid("source term %s needs at least one well BC", SourceWells)
	}
	if ip.Adaptation.Enabled {
		if len(ip.Adaptation.SingularElements) > 0 && !(ip.Adaptation.SingularityTolerance > 0) {
			return invalid("singular elements need a positive SingularityTolerance, have %g",
				ip.Adaptation.SingularityTolerance)
		}
		for _, f := range ip.Adaptation.Fields {
			switch strings.ToLower(f) {
			case "pressure", "saturation":
			default:
				return invalid("unknown adaptation field [%s]", f)
			}
		}
	}
	return nil
}

// bcsOf merges the BC groups of one type, so that "Well" and "wells" both count.
func (ip *SimulatorParameters) bcsOf(bc types.BCFLAG) (merged map[int]map[string]float64) {
	merged = make(map[int]map[string]float64)
	for name, bcs := range ip.BCs {
		if b, err := types.NewBCFLAG(name); err != nil || b != bc {
			continue
		}
		for flag, params := range bcs {
			merged[flag] = params
		}
	}
	return
}

// DirichletValues maps every Dirichlet flag to its prescribed pressure.
func (ip *SimulatorParameters) DirichletValues() (values map[int]float64) {
	values = make(map[int]float64)
	for flag, params := range ip.bcsOf(types.BC_Dirichlet) {
		values[flag] = params["P"]
	}
	return
}

// Wells builds the wells in flag order. Well nodes are the nodes marked with
// the well flag plus the ones listed in WellNodes.
func (ip *SimulatorParameters) Wells(m elliptic.MarkedMesh) (wells []elliptic.Well) {
	bcs := ip.bcsOf(types.BC_Well)
	flags := make([]int, 0, len(bcs))
	for flag := range bcs {
		flags = append(flags, flag)
	}
	sort.Ints(flags)
	for _, flag := range flags {
		nodes := utils.NewSorted(append(m.MarkedNodes(flag), ip.WellNodes[flag]...))
		wells = append(wells, elliptic.Well{
			Flag:     flag,
			FlowRate: bcs[flag]["Q"],
			Volume:   bcs[flag]["V"],
			Nodes:    nodes,
		})
	}
	return
}

func (ip *SimulatorParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Source Term\n", ip.SourceTerm)
	if ip.SourceTerm == SourceManufactured {
		fmt.Printf("%8.5f\t\t= Alpha\n", ip.Alpha)
	}
	fmt.Printf("[%v]\t\t\t= Defect Correction\n", ip.DefectCorrection)
	flags := make([]int, 0, len(ip.Permeability))
	for flag := range ip.Permeability {
		flags = append(flags, flag)
	}
	sort.Ints(flags)
	for _, flag := range flags {
		fmt.Printf("K[%d] = %g\n", flag, ip.Permeability[flag])
	}
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
	if ad := ip.Adaptation; ad.Enabled {
		fmt.Printf("Adaptation: tolerance %g, singularity tolerance %g, max subdivision %d, fields %v\n",
			ad.Tolerance, ad.SingularityTolerance, ad.MaxSubdivision, ad.Fields)
	}
}
