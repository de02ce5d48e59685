package erroranalysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

var ErrInvalidMesh = errors.New("erroranalysis: invalid mesh")

// DegenerateMeasure is the element measure at or below which an element is
// skipped by the error calculation.
const DegenerateMeasure = 1e-14

type Field uint8

const (
	Pressure Field = iota
	Saturation
)

func (f Field) String() string {
	switch f {
	case Pressure:
		return "pressure"
	case Saturation:
		return "saturation"
	}
	return fmt.Sprintf("Field(%d)", uint8(f))
}

// GradientFunc returns the smoothed nodal gradient of a field.
type GradientFunc func(field Field, node int) [3]float64

// Mesh is the element view the estimator works on. Element handles are the
// indices in [0, NumElements).
type Mesh interface {
	Dimension() int
	NumNodes() int
	NumElements() int
	ElementVertices(k int) []int
	ElementDepth(k int) int
	ElementMeasure(k int) float64
}

type Settings struct {
	// Tolerance on the error of every element, relative to the gradient norm
	Tolerance float64
	// SingularityTolerance applies to elements outside singular regions when
	// singularities are treated apart
	SingularityTolerance float64
	MaxSubdivision       int
}

func (s Settings) Validate() error {
	switch {
	case !(s.Tolerance > 0):
		return fmt.Errorf("error tolerance must be positive, have %g", s.Tolerance)
	case s.SingularityTolerance < 0:
		return fmt.Errorf("singularity tolerance must not be negative, have %g", s.SingularityTolerance)
	case s.MaxSubdivision < 0:
		return fmt.Errorf("maximum number of subdivisions must not be negative, have %d", s.MaxSubdivision)
	}
	return nil
}

// validateFor also requires the second tolerance when singular elements are
// treated apart.
func (s Settings) validateFor(useSingularityTolerance bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if useSingularityTolerance && !(s.SingularityTolerance > 0) {
		return fmt.Errorf("singularity tolerance must be positive when singular elements are given, have %g",
			s.SingularityTolerance)
	}
	return nil
}

// ElementState is the estimator's record for one element.
type ElementState struct {
	Error float64
	// Level > 0 refines that many times, -1 unrefines once
	Level      int
	Singular   bool
	CDL        float64 // Characteristic dimension length
	HNew       float64 // Requested element height
	Degenerate bool
}

// ErrorAnalysis is implemented once per mesh dimension.
type ErrorAnalysis interface {
	CalculateElementsError(m Mesh, grad GradientFunc, field Field) error
	CalculateSmoothedGradientNorm(m Mesh, grad GradientFunc, field Field) error
	CalculateSmoothedGradientNormSingularity(m Mesh, grad GradientFunc, field Field) error
	CalculateCharacteristicDimensionLength(m Mesh) error
	CalculateDegreeOfRefinement(m Mesh, s Settings, useSingularityTolerance bool) error
	Base() *Analysis
}

func New(dim int, log *zap.Logger) (ea ErrorAnalysis, err error) {
	switch dim {
	case 2:
		ea = &ErrorAnalysis2D{Analysis: newAnalysis(2, log)}
	case 3:
		ea = &ErrorAnalysis3D{Analysis: newAnalysis(3, log)}
	default:
		err = fmt.Errorf("%w: no error analysis for dimension %d", ErrInvalidMesh, dim)
	}
	return
}

// Analysis holds the element records and the aggregates shared by both
// dimensions.
type Analysis struct {
	dim      int
	Elements []ElementState

	SGN, SGNSingularity                            float64
	GlobalError, GlobalErrorSingularity            float64
	AverageError, AverageErrorSingularity          float64
	NumElements, NumElementsSingularity            int
	MaxDepth, MaxRefinementFlag, MinRefinementFlag int

	hMin    float64
	hMinSet bool
	hNew    []float64 // Smallest requested height per node
	log     *zap.Logger
}

func newAnalysis(dim int, log *zap.Logger) *Analysis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analysis{dim: dim, log: log}
}

func (a *Analysis) Base() *Analysis { return a }

func (a *Analysis) Dimension() int { return a.dim }

// Initialize sizes the element records for m. Errors, levels and heights are
// cleared, singular flags survive as long as the element count is unchanged.
func (a *Analysis) Initialize(m Mesh) (err error) {
	if err = a.checkMesh(m); err != nil {
		return
	}
	ne := m.NumElements()
	if len(a.Elements) != ne {
		a.Elements = make([]ElementState, ne)
		return
	}
	for k := range a.Elements {
		a.Elements[k] = ElementState{Singular: a.Elements[k].Singular}
	}
	return
}

func (a *Analysis) checkMesh(m Mesh) error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: no mesh", ErrInvalidMesh)
	case m.Dimension() != a.dim:
		return fmt.Errorf("%w: %dD mesh given to %dD error analysis", ErrInvalidMesh, m.Dimension(), a.dim)
	}
	return nil
}

// ready checks the mesh and sizes the records when they do not match it.
func (a *Analysis) ready(m Mesh) (err error) {
	if err = a.checkMesh(m); err != nil {
		return
	}
	if len(a.Elements) != m.NumElements() {
		err = a.Initialize(m)
	}
	return
}

// elementGradients returns the vertex gradients of element k and their mean.
func (a *Analysis) elementGradients(m Mesh, k int, grad GradientFunc, field Field) (g [][3]float64, mean [3]float64, err error) {
	verts := m.ElementVertices(k)
	if len(verts) != a.dim+1 {
		err = fmt.Errorf("%w: element %d has %d vertices", ErrInvalidMesh, k, len(verts))
		return
	}
	g = make([][3]float64, len(verts))
	for i, v := range verts {
		g[i] = grad(field, v)
		for c := 0; c < 3; c++ {
			mean[c] += g[i][c]
		}
	}
	for c := 0; c < 3; c++ {
		mean[c] /= float64(len(verts))
	}
	return
}

func norm2(v [3]float64) float64 { return v[0]*v[0] + v[1]*v[1] + v[2]*v[2] }

// elementsError sets e_K = sqrt(|K| 1/n sum_v |grad_v - mean|^2).
func (a *Analysis) elementsError(m Mesh, grad GradientFunc, field Field) (err error) {
	if err = a.ready(m); err != nil {
		return
	}
	for k := range a.Elements {
		st := &a.Elements[k]
		vol := m.ElementMeasure(k)
		if st.Degenerate = !(vol > DegenerateMeasure); st.Degenerate {
			st.Error = 0
			continue
		}
		var (
			g    [][3]float64
			mean [3]float64
			sum  float64
		)
		if g, mean, err = a.elementGradients(m, k, grad, field); err != nil {
			return
		}
		for _, gv := range g {
			sum += norm2([3]float64{gv[0] - mean[0], gv[1] - mean[1], gv[2] - mean[2]})
		}
		st.Error = math.Sqrt(vol * sum / float64(len(g)))
	}
	return
}

// smoothedGradientNorm returns sqrt(sum_K |K| |mean grad|^2) over the
// non degenerate elements accepted by include.
func (a *Analysis) smoothedGradientNorm(m Mesh, grad GradientFunc, field Field,
	include func(st ElementState) bool) (sgn float64, err error) {
	if err = a.ready(m); err != nil {
		return
	}
	for k, st := range a.Elements {
		vol := m.ElementMeasure(k)
		if !(vol > DegenerateMeasure) || !include(st) {
			continue
		}
		var mean [3]float64
		if _, mean, err = a.elementGradients(m, k, grad, field); err != nil {
			return
		}
		sgn += vol * norm2(mean)
	}
	return math.Sqrt(sgn), nil
}

func (a *Analysis) characteristicDimensionLength(m Mesh, cdl func(measure float64) float64) (err error) {
	if err = a.ready(m); err != nil {
		return
	}
	for k := range a.Elements {
		a.Elements[k].CDL = cdl(math.Abs(m.ElementMeasure(k)))
	}
	return
}

/*
degreeOfRefinement compares every element error against the allowed error
tol*SGN/sqrt(N) and derives the height the element should have,

	h_new = h * allowed / e_K

An element whose h_new is below h is refined ceil(log2(h/h_new)) times, unless
that takes it below h_min. An element already subdivided whose h_new is at
least 2h is unrefined once.
*/
func (a *Analysis) degreeOfRefinement(m Mesh, s Settings, useSingularityTolerance bool) (err error) {
	if err = s.validateFor(useSingularityTolerance); err != nil {
		return
	}
	if err = a.ready(m); err != nil {
		return
	}
	a.CountElements()
	var (
		sgnRegular = math.Sqrt(math.Max(0, a.SGN*a.SGN-a.SGNSingularity*a.SGNSingularity))
		nRegular   = a.NumElements - a.NumElementsSingularity
	)
	for k := range a.Elements {
		st := &a.Elements[k]
		st.Level = 0
		st.HNew = st.CDL
		if st.Degenerate {
			continue
		}
		tol, sgn, n := s.Tolerance, a.SGN, a.NumElements
		if useSingularityTolerance {
			if st.Singular {
				tol, sgn, n = s.Tolerance, a.SGNSingularity, a.NumElementsSingularity
			} else {
				tol, sgn, n = s.SingularityTolerance, sgnRegular, nRegular
			}
		}
		if n <= 0 {
			continue
		}
		var (
			h       = st.CDL
			allowed = tol * sgn / math.Sqrt(float64(n))
			hNew    = 2 * h
		)
		if st.Error > 0 {
			hNew = math.Min(h*allowed/st.Error, 2*h)
		}
		st.HNew = hNew
		switch {
		case hNew <= 0:
			st.HNew = h
		case hNew < h:
			level := int(math.Ceil(math.Log2(h / hNew)))
			if a.hMinSet && h/math.Pow(2, float64(level)) < a.hMin {
				level = 0
			}
			st.Level = level
		case hNew >= 2*h && m.ElementDepth(k) > 0:
			st.Level = -1
		}
	}
	return
}

// CountElements counts the non degenerate elements and, among them, the
// singular ones.
func (a *Analysis) CountElements() (n, nSingular int) {
	for _, st := range a.Elements {
		if st.Degenerate {
			continue
		}
		n++
		if st.Singular {
			nSingular++
		}
	}
	a.NumElements, a.NumElementsSingularity = n, nSingular
	return
}

func (a *Analysis) errorSum(excludingSingularities bool) (sum float64) {
	for _, st := range a.Elements {
		if excludingSingularities && st.Singular {
			continue
		}
		sum += st.Error
	}
	return
}

func (a *Analysis) CalculateGlobalError() float64 {
	a.GlobalError = a.errorSum(false)
	return a.GlobalError
}

// CalculateGlobalErrorSingularity sums the errors outside singular regions.
func (a *Analysis) CalculateGlobalErrorSingularity() float64 {
	a.GlobalErrorSingularity = a.errorSum(true)
	return a.GlobalErrorSingularity
}

// CalculateAvgError divides globalError by the element count, or by the count
// of non singular elements. An empty count gives zero.
func (a *Analysis) CalculateAvgError(globalError float64, excludingSingularities bool) (avg float64) {
	n, nSingular := a.CountElements()
	if excludingSingularities {
		n -= nSingular
	}
	if n > 0 {
		avg = globalError / float64(n)
	}
	if excludingSingularities {
		a.AverageErrorSingularity = avg
	} else {
		a.AverageError = avg
	}
	return
}

// CalculateMaxMinErrorData records the deepest element and the extreme
// refinement levels.
func (a *Analysis) CalculateMaxMinErrorData(m Mesh) (err error) {
	if err = a.ready(m); err != nil {
		return
	}
	a.MaxDepth, a.MaxRefinementFlag, a.MinRefinementFlag = 0, 0, 0
	for k, st := range a.Elements {
		if d := m.ElementDepth(k); d > a.MaxDepth {
			a.MaxDepth = d
		}
		if k == 0 || st.Level > a.MaxRefinementFlag {
			a.MaxRefinementFlag = st.Level
		}
		if k == 0 || st.Level < a.MinRefinementFlag {
			a.MinRefinementFlag = st.Level
		}
	}
	return
}

// CheckMaximumNumberOfSubdivision is true when no element has been
// subdivided more than maxSubdivision times.
func (a *Analysis) CheckMaximumNumberOfSubdivision(m Mesh, maxSubdivision int) bool {
	for k := 0; k < m.NumElements(); k++ {
		if m.ElementDepth(k) > maxSubdivision {
			return false
		}
	}
	return true
}

// GetRefUnrefElementsList returns the elements flagged for refinement or
// unrefinement and the vertices of those elements, both sorted.
func (a *Analysis) GetRefUnrefElementsList(m Mesh) (elements, nodes []int, err error) {
	if err = a.ready(m); err != nil {
		return
	}
	seen := make(map[int]bool)
	for k, st := range a.Elements {
		if st.Level == 0 {
			continue
		}
		elements = append(elements, k)
		for _, v := range m.ElementVertices(k) {
			if !seen[v] {
				seen[v] = true
				nodes = append(nodes, v)
			}
		}
	}
	sort.Ints(nodes)
	return
}

// SetHMin fixes the smallest element height allowed to the smallest
// characteristic length of the non degenerate elements divided
// maxSubdivision times. It is computed once per Analysis, later calls keep
// the first value.
func (a *Analysis) SetHMin(m Mesh, maxSubdivision int) (err error) {
	if a.hMinSet {
		return
	}
	if err = a.ready(m); err != nil {
		return
	}
	hMin := math.Inf(1)
	for k, st := range a.Elements {
		if !(m.ElementMeasure(k) > DegenerateMeasure) {
			continue
		}
		if st.CDL > 0 && st.CDL < hMin {
			hMin = st.CDL
		}
	}
	if math.IsInf(hMin, 1) {
		return fmt.Errorf("%w: no element with a positive characteristic length", ErrInvalidMesh)
	}
	a.hMin = hMin / math.Pow(2, float64(maxSubdivision))
	a.hMinSet = true
	return
}

func (a *Analysis) HMin() float64 { return a.hMin }

// ResetHMin forgets h_min, for use with a new initial mesh.
func (a *Analysis) ResetHMin() { a.hMin, a.hMinSet = 0, false }

func (a *Analysis) SetElementsAsSingular(elements []int) error {
	for _, k := range elements {
		if k < 0 || k >= len(a.Elements) {
			return fmt.Errorf("%w: singular element %d outside [0,%d)", ErrInvalidMesh, k, len(a.Elements))
		}
		a.Elements[k].Singular = true
	}
	return nil
}

func (a *Analysis) ResetAllElementsAsSingular() {
	for k := range a.Elements {
		a.Elements[k].Singular = false
	}
}

// ResetHNew clears the per node heights before a multi field pass.
func (a *Analysis) ResetHNew(m Mesh) {
	a.hNew = make([]float64, m.NumNodes())
	for i := range a.hNew {
		a.hNew[i] = math.Inf(1)
	}
}

// StoreHNew keeps, for every node, the smallest requested height of the
// elements around it over all fields stored so far.
func (a *Analysis) StoreHNew(m Mesh) (err error) {
	if err = a.ready(m); err != nil {
		return
	}
	if len(a.hNew) != m.NumNodes() {
		a.ResetHNew(m)
	}
	for k, st := range a.Elements {
		if st.Degenerate {
			continue
		}
		for _, v := range m.ElementVertices(k) {
			a.hNew[v] = math.Min(a.hNew[v], st.HNew)
		}
	}
	return
}

// UpdateHNew applies the h_min floor to the stored node heights.
func (a *Analysis) UpdateHNew() {
	if !a.hMinSet {
		return
	}
	for i, h := range a.hNew {
		if h < a.hMin {
			a.hNew[i] = a.hMin
		}
	}
}

// HNew returns a copy of the per node heights. Nodes touched by no element
// hold +Inf.
func (a *Analysis) HNew() []float64 { return append([]float64(nil), a.hNew...) }

// Monitor logs the error data of a field.
func (a *Analysis) Monitor(field Field, tol, tolSingularity float64) {
	a.log.Info("error analysis",
		zap.Stringer("field", field),
		zap.Float64("tolerance", tol),
		zap.Float64("tolerance_singularity", tolSingularity),
		zap.Int("elements", a.NumElements),
		zap.Int("elements_singular", a.NumElementsSingularity),
		zap.Float64("sgn", a.SGN),
		zap.Float64("sgn_singular", a.SGNSingularity),
		zap.Float64("global_error", a.GlobalError),
		zap.Float64("global_error_regular", a.GlobalErrorSingularity),
		zap.Float64("avg_error", a.AverageError),
		zap.Float64("avg_error_regular", a.AverageErrorSingularity),
		zap.Int("max_depth", a.MaxDepth),
		zap.Int("max_ref", a.MaxRefinementFlag),
		zap.Int("min_ref", a.MinRefinementFlag),
		zap.Float64("h_min", a.hMin))
}
