// Package numeric implements the pipeline's numeric kernels (spec §4.A):
// small dense linear solves, ordinary least squares, and the two- and
// three-parameter hyperbolic curve fit used to characterise a Transition
// Period. Grounded in the teacher's transitive dependency on
// gonum.org/v1/gonum (pulled in via llm-inferno/model-tuner in
// inference-sim's go.mod) for the dense linear algebra, and in
// other_examples/markus-lassfolk-autonomy's use of github.com/sajari/regression
// for trend estimation over an embedded telemetry stream — the closest
// domain analog in the retrieved pack to this slave controller's ordinary
// least squares fit.
package numeric

import (
	"math"

	"github.com/sajari/regression"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultEpsilonZero is used when a caller does not have a config.Config on
// hand (e.g. unit tests exercising a kernel in isolation).
const DefaultEpsilonZero = 1e-30

// Solve2x2 solves the 2x2 linear system M*[x,y]=b by gonum's dense solver,
// matching the spec's ev_solve_2x2 Cramer's-rule kernel but delegated to
// gonum/mat rather than hand-rolled determinant arithmetic. ok is false iff
// the system is singular (|det| < eps).
func Solve2x2(m [2][2]float64, b [2]float64, eps float64) (x, y float64, ok bool) {
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	if math.Abs(det) < eps {
		return 0, 0, false
	}
	A := mat.NewDense(2, 2, []float64{m[0][0], m[0][1], m[1][0], m[1][1]})
	B := mat.NewDense(2, 1, []float64{b[0], b[1]})
	var X mat.Dense
	if err := X.Solve(A, B); err != nil {
		return 0, 0, false
	}
	return X.At(0, 0), X.At(1, 0), true
}

// Solve3x3 solves the 3x3 linear system M*[x,y,z]=b. Mirrors ev_solve_3x3's
// normalise-row-0/eliminate/back-substitute structure in spirit: the
// singularity check on M[0][0] is kept explicit per spec, with the actual
// solve delegated to gonum.
func Solve3x3(m [3][3]float64, b [3]float64, eps float64) (x, y, z float64, ok bool) {
	if math.Abs(m[0][0]) < eps {
		return 0, 0, 0, false
	}
	flat := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		flat = append(flat, m[i][0], m[i][1], m[i][2])
	}
	A := mat.NewDense(3, 3, flat)
	B := mat.NewDense(3, 1, []float64{b[0], b[1], b[2]})
	var X mat.Dense
	if err := X.Solve(A, B); err != nil {
		return 0, 0, 0, false
	}
	return X.At(0, 0), X.At(1, 0), X.At(2, 0), true
}

// RegressionResult holds the outcome of an ordinary least squares fit.
type RegressionResult struct {
	Slope     float64
	Intercept float64
	MeanX     float64
	MeanY     float64
	R2        float64
}

// LinearRegression fits y = slope*t + intercept by ordinary least squares,
// using github.com/sajari/regression for the fit (the normal-equation solve
// itself is delegated to that library rather than hand-rolled, per spec
// §4.A's "via the normal equations"). If the total variance of y is below
// eps, R2 is clamped to 0.99 per spec.
func LinearRegression(t, y []float64, eps float64) (RegressionResult, bool) {
	if len(t) != len(y) || len(t) < 2 {
		return RegressionResult{}, false
	}

	r := new(regression.Regression)
	r.SetObserved("y")
	r.SetVar(0, "t")
	for i := range t {
		r.Train(regression.DataPoint(y[i], []float64{t[i]}))
	}
	if err := r.Run(); err != nil {
		return RegressionResult{}, false
	}

	meanT := stat.Mean(t, nil)
	meanY := stat.Mean(y, nil)

	var varY float64
	for _, v := range y {
		d := v - meanY
		varY += d * d
	}

	res := RegressionResult{
		Slope:     r.Coeff(1),
		Intercept: r.Coeff(0),
		MeanX:     meanT,
		MeanY:     meanY,
	}
	if varY < eps {
		res.R2 = 0.99
	} else {
		res.R2 = stat.RSquared(t, y, nil, res.Intercept, res.Slope)
	}
	return res, true
}

// Average returns the arithmetic mean of y, the sum of squared deviations
// from that mean, and a diagnostic R² against the origin (spec §4.A: "a
// diagnostic quantity").
func Average(y []float64) (mean, sumSqDev, r2 float64) {
	n := len(y)
	if n == 0 {
		return 0, 0, 0
	}
	mean = stat.Mean(y, nil)
	for _, v := range y {
		d := v - mean
		sumSqDev += d * d
	}
	// R² against the origin: treat y as fit by the constant model ŷ=mean
	// evaluated with a zero-intercept baseline, per ev_algebra.h's average
	// kernel, which reports goodness purely as a diagnostic.
	var ssTot, ssRes float64
	for _, v := range y {
		ssTot += v * v
		ssRes += (v - mean) * (v - mean)
	}
	if ssTot < DefaultEpsilonZero {
		return mean, sumSqDev, 0.99
	}
	r2 = 1 - ssRes/ssTot
	return mean, sumSqDev, r2
}
