package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolve2x2_NonSingular_RecoversKnownRoots(t *testing.T) {
	// GIVEN a system with known roots x=3, y=-2
	m := [2][2]float64{{2, 1}, {1, -1}}
	b := [2]float64{4, 5}

	// WHEN solved
	x, y, ok := Solve2x2(m, b, DefaultEpsilonZero)

	// THEN the roots match within epsilon
	assert.True(t, ok)
	assert.InDelta(t, 3.0, x, 1e-9)
	assert.InDelta(t, -2.0, y, 1e-9)
}

func TestSolve2x2_Singular_ReturnsFalse(t *testing.T) {
	// GIVEN a singular system (rows are multiples of each other)
	m := [2][2]float64{{1, 2}, {2, 4}}
	b := [2]float64{1, 2}

	// WHEN solved
	_, _, ok := Solve2x2(m, b, DefaultEpsilonZero)

	// THEN it reports singular
	assert.False(t, ok)
}

func TestSolve3x3_NonSingular_RecoversKnownRoots(t *testing.T) {
	// GIVEN a system with known roots x=1, y=2, z=3
	m := [3][3]float64{
		{1, 1, 1},
		{0, 2, 5},
		{2, 5, -1},
	}
	b := [3]float64{6, 19, 9}

	// WHEN solved
	x, y, z, ok := Solve3x3(m, b, DefaultEpsilonZero)

	// THEN the roots match within epsilon
	assert.True(t, ok)
	assert.InDelta(t, 1.0, x, 1e-6)
	assert.InDelta(t, 2.0, y, 1e-6)
	assert.InDelta(t, 3.0, z, 1e-6)
}

func TestSolve3x3_SingularFirstPivot_ReturnsFalse(t *testing.T) {
	// GIVEN a system whose first pivot is zero
	m := [3][3]float64{
		{0, 1, 1},
		{1, 2, 1},
		{1, 1, 2},
	}
	b := [3]float64{1, 2, 3}

	// WHEN solved
	_, _, _, ok := Solve3x3(m, b, DefaultEpsilonZero)

	// THEN it reports singular
	assert.False(t, ok)
}

func TestLinearRegression_ExactlyLinear_RecoversSlopeAndIntercept(t *testing.T) {
	// GIVEN points lying exactly on y = 2t + 1
	ts := []float64{0, 1, 2, 3, 4}
	ys := make([]float64, len(ts))
	for i, tv := range ts {
		ys[i] = 2*tv + 1
	}

	// WHEN regressed
	res, ok := LinearRegression(ts, ys, DefaultEpsilonZero)

	// THEN slope/intercept are exact and R² is at least 0.99 (a perfect fit)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, res.Slope, 1e-6)
	assert.InDelta(t, 1.0, res.Intercept, 1e-6)
	assert.GreaterOrEqual(t, res.R2, 0.99)
}

func TestLinearRegression_NoisyData_HighR2(t *testing.T) {
	// GIVEN points close to y = -0.5t + 3 with a small perturbation
	ts := []float64{0, 1, 2, 3, 4, 5}
	ys := []float64{3.0, 2.52, 1.98, 1.49, 1.02, 0.48}

	// WHEN regressed
	res, ok := LinearRegression(ts, ys, DefaultEpsilonZero)

	// THEN the fit is strong
	assert.True(t, ok)
	assert.InDelta(t, -0.5, res.Slope, 0.05)
	assert.GreaterOrEqual(t, res.R2, 0.999)
}

func TestAverage_ConstantSeries_ZeroDeviation(t *testing.T) {
	// GIVEN a constant series
	y := []float64{5, 5, 5, 5}

	// WHEN averaged
	mean, sumSqDev, _ := Average(y)

	// THEN mean is the constant and deviation is zero
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 0.0, sumSqDev)
}

func TestFitHyperbolic_NoiselessData_RecoversCoefficients(t *testing.T) {
	// GIVEN noiseless samples from A/(t-t0)^2 + B/(t-t0) + C with known t0
	const A, B, C, t0 = 10.0, -4.0, 2.0, -1.0
	var samples []Point
	for i := 0; i < 12; i++ {
		tv := float64(i) * 0.5
		dt := tv - t0
		y := A/(dt*dt) + B/dt + C
		samples = append(samples, Point{T: tv, Y: y})
	}

	// WHEN fit with the correct t0
	a, b, c, r2, ok := FitHyperbolic(samples, 0, len(samples)-1, t0, 3, DefaultEpsilonZero)

	// THEN coefficients are recovered within 1%
	assert.True(t, ok)
	assert.InDelta(t, A, a, math.Abs(A)*0.01+1e-6)
	assert.InDelta(t, B, b, math.Abs(B)*0.01+1e-6)
	assert.InDelta(t, C, c, math.Abs(C)*0.01+1e-6)
	assert.GreaterOrEqual(t, r2, 0.99)
}

func TestFitHyperbolic_TimeAtOrBeforeT0_Fails(t *testing.T) {
	// GIVEN a window containing a sample at t <= t0
	samples := []Point{{T: -1, Y: 1}, {T: 0, Y: 2}, {T: 1, Y: 3}}

	// WHEN fit with t0 == first sample's time
	_, _, _, _, ok := FitHyperbolic(samples, 0, 2, -1, 3, DefaultEpsilonZero)

	// THEN it fails rather than dividing by (near) zero
	assert.False(t, ok)
}

func TestFitHyperbolicOptimalT0_GridSearch_FindsGoodR2(t *testing.T) {
	// GIVEN noiseless hyperbolic samples with a known singularity before the window
	const A, B, C, trueT0 = 6.0, -1.5, 0.8, -0.37
	var samples []Point
	for i := 0; i < 10; i++ {
		tv := float64(i)*0.3 + 0.1
		dt := tv - trueT0
		y := A/(dt*dt) + B/dt + C
		samples = append(samples, Point{T: tv, Y: y})
	}

	// WHEN the optimal t0 is searched for in a bracket around the truth
	_, _, _, t0, r2, ok := FitHyperbolicOptimalT0(samples, 0, len(samples)-1, -1.0, 0.1, DefaultEpsilonZero)

	// THEN the search converges to a high-R² fit near the true singularity
	assert.True(t, ok)
	assert.GreaterOrEqual(t, r2, 0.9)
	assert.InDelta(t, trueT0, t0, 0.2)
}
