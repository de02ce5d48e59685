package types

import (
	"fmt"
	"strings"
)

type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Dirichlet
	BC_Neuman
	BC_Well
)

var BCNameMap = map[string]BCFLAG{
	"dirichlet": BC_Dirichlet,
	"pressure":  BC_Dirichlet,
	"neuman":    BC_Neuman,
	"neumann":   BC_Neuman,
	"well":      BC_Well,
	"wells":     BC_Well,
}

func (bc BCFLAG) String() string {
	switch bc {
	case BC_Dirichlet:
		return "Dirichlet"
	case BC_Neuman:
		return "Neuman"
	case BC_Well:
		return "Well"
	default:
		return "None"
	}
}

// NewBCFLAG looks a boundary condition name up case-insensitively.
func NewBCFLAG(name string) (bc BCFLAG, err error) {
	var ok bool
	if bc, ok = BCNameMap[strings.ToLower(strings.TrimSpace(name))]; !ok {
		err = fmt.Errorf("unknown boundary condition type: [%s]", name)
	}
	return
}
