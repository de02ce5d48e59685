package erroranalysis

import "math"

// ErrorAnalysis2D works on triangle meshes.
type ErrorAnalysis2D struct {
	*Analysis
}

func (ea *ErrorAnalysis2D) CalculateElementsError(m Mesh, grad GradientFunc, field Field) error {
	return ea.elementsError(m, grad, field)
}

func (ea *ErrorAnalysis2D) CalculateSmoothedGradientNorm(m Mesh, grad GradientFunc, field Field) (err error) {
	ea.SGN, err = ea.smoothedGradientNorm(m, grad, field, func(ElementState) bool { return true })
	return
}

func (ea *ErrorAnalysis2D) CalculateSmoothedGradientNormSingularity(m Mesh, grad GradientFunc, field Field) (err error) {
	ea.SGNSingularity, err = ea.smoothedGradientNorm(m, grad, field, func(st ElementState) bool { return st.Singular })
	return
}

// CalculateCharacteristicDimensionLength uses the side of the equilateral
// triangle with the element's area.
func (ea *ErrorAnalysis2D) CalculateCharacteristicDimensionLength(m Mesh) error {
	return ea.characteristicDimensionLength(m, func(area float64) float64 {
		return math.Sqrt(4 * area / math.Sqrt(3))
	})
}

func (ea *ErrorAnalysis2D) CalculateDegreeOfRefinement(m Mesh, s Settings, useSingularityTolerance bool) error {
	return ea.degreeOfRefinement(m, s, useSingularityTolerance)
}
