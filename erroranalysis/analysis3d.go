package erroranalysis

import "math"

// ErrorAnalysis3D works on tetrahedral meshes.
type ErrorAnalysis3D struct {
	*Analysis
}

func (ea *ErrorAnalysis3D) CalculateElementsError(m Mesh, grad GradientFunc, field Field) error {
	return ea.elementsError(m, grad, field)
}

func (ea *ErrorAnalysis3D) CalculateSmoothedGradientNorm(m Mesh, grad GradientFunc, field Field) (err error) {
	ea.SGN, err = ea.smoothedGradientNorm(m, grad, field, func(ElementState) bool { return true })
	return
}

func (ea *ErrorAnalysis3D) CalculateSmoothedGradientNormSingularity(m Mesh, grad GradientFunc, field Field) (err error) {
	ea.SGNSingularity, err = ea.smoothedGradientNorm(m, grad, field, func(st ElementState) bool { return st.Singular })
	return
}

// CalculateCharacteristicDimensionLength uses the edge of the regular
// tetrahedron with the element's volume, V = h^3/(6 sqrt(2)).
func (ea *ErrorAnalysis3D) CalculateCharacteristicDimensionLength(m Mesh) error {
	return ea.characteristicDimensionLength(m, func(vol float64) float64 {
		return math.Cbrt(6 * math.Sqrt2 * vol)
	})
}

func (ea *ErrorAnalysis3D) CalculateDegreeOfRefinement(m Mesh, s Settings, useSingularityTolerance bool) error {
	return ea.degreeOfRefinement(m, s, useSingularityTolerance)
}
