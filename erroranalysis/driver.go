package erroranalysis

import (
	"fmt"
)

/*
CalculateErrorAnalysis runs one estimation pass over m for every field and
reports whether the mesh must be adapted.

Each field is estimated on its own and the element levels are then combined:
a refinement asked by any field wins with the largest level, an element is
unrefined only when every field agrees. The per node heights keep the
smallest request over all fields. After the call the element errors are
those of the last field.

Elements listed in singular are treated apart with their own tolerance. h_min
is fixed from the first mesh seen by ea.
*/
func CalculateErrorAnalysis(ea ErrorAnalysis, m Mesh, s Settings, grad GradientFunc,
	fields []Field, singular []int) (adapt bool, err error) {
	a := ea.Base()
	if err = s.validateFor(len(singular) > 0); err != nil {
		return
	}
	if len(fields) == 0 {
		return false, fmt.Errorf("no field to analyse")
	}
	if grad == nil {
		return false, fmt.Errorf("no gradient accessor")
	}
	if err = a.Initialize(m); err != nil {
		return
	}
	a.ResetAllElementsAsSingular()
	if err = a.SetElementsAsSingular(singular); err != nil {
		return
	}
	if err = ea.CalculateCharacteristicDimensionLength(m); err != nil {
		return
	}
	if err = a.SetHMin(m, s.MaxSubdivision); err != nil {
		return
	}
	a.ResetHNew(m)
	var (
		useSingularity = len(singular) > 0
		levels         = make([]int, m.NumElements())
	)
	for i, field := range fields {
		if err = ea.CalculateElementsError(m, grad, field); err != nil {
			return
		}
		if err = ea.CalculateSmoothedGradientNorm(m, grad, field); err != nil {
			return
		}
		a.SGNSingularity = 0
		if useSingularity {
			if err = ea.CalculateSmoothedGradientNormSingularity(m, grad, field); err != nil {
				return
			}
		}
		a.CountElements()
		a.CalculateAvgError(a.CalculateGlobalError(), false)
		a.CalculateAvgError(a.CalculateGlobalErrorSingularity(), true)
		if err = ea.CalculateDegreeOfRefinement(m, s, useSingularity); err != nil {
			return
		}
		if err = a.CalculateMaxMinErrorData(m); err != nil {
			return
		}
		a.Monitor(field, s.Tolerance, s.SingularityTolerance)
		if err = a.StoreHNew(m); err != nil {
			return
		}
		for k, st := range a.Elements {
			if i == 0 {
				levels[k] = st.Level
				continue
			}
			levels[k] = combineLevels(levels[k], st.Level)
		}
	}
	for k := range a.Elements {
		a.Elements[k].Level = levels[k]
	}
	a.UpdateHNew()
	if err = a.CalculateMaxMinErrorData(m); err != nil {
		return
	}
	adapt = (a.MaxRefinementFlag > 0 || a.MinRefinementFlag < 0) &&
		a.CheckMaximumNumberOfSubdivision(m, s.MaxSubdivision)
	return
}

func combineLevels(l1, l2 int) int {
	switch {
	case l1 > 0 || l2 > 0:
		if l1 > l2 {
			return l1
		}
		return l2
	case l1 < 0 && l2 < 0:
		return -1
	}
	return 0
}
