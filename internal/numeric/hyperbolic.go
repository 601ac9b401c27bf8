package numeric

import "math"

// Divider is the number of grid sub-intervals used by
// FitHyperbolicOptimalT0's refinement passes (spec §4.A: "DIVIDER=10").
const Divider = 10

// Point is one (time, value) observation fed to the hyperbolic fit.
type Point struct {
	T float64
	Y float64
}

// FitHyperbolic fits y(t) = A/(t-t0)^2 + B/(t-t0) + C over samples[iStart:iEnd]
// (inclusive of iEnd) by solving the 3x3 normal-equation system over the
// basis {1/(t-t0)^2, 1/(t-t0), 1}. When params==2, B is fixed to zero: the
// normal matrix's B row/column is zeroed and the diagonal forced to 1, so
// the same Solve3x3 kernel serves both variants, per spec §4.A.
//
// Fails (ok=false) if any t-t0 <= eps in the window, or the normal-equation
// system is singular.
func FitHyperbolic(samples []Point, iStart, iEnd int, t0 float64, params int, eps float64) (A, B, C, r2 float64, ok bool) {
	if iStart < 0 || iEnd >= len(samples) || iStart > iEnd {
		return 0, 0, 0, 0, false
	}

	n := iEnd - iStart + 1
	f1 := make([]float64, n)
	f2 := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		dt := samples[iStart+i].T - t0
		if dt <= eps {
			return 0, 0, 0, 0, false
		}
		f2[i] = 1.0 / dt
		f1[i] = f2[i] * f2[i]
		y[i] = samples[iStart+i].Y
	}

	var M [3][3]float64
	var b [3]float64
	for i := 0; i < n; i++ {
		basis := [3]float64{f1[i], f2[i], 1}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				M[r][c] += basis[r] * basis[c]
			}
			b[r] += basis[r] * y[i]
		}
	}

	if params == 2 {
		for c := 0; c < 3; c++ {
			M[1][c] = 0
			M[c][1] = 0
		}
		M[1][1] = 1
		b[1] = 0
	}

	x, yc, zc, ok := Solve3x3(M, b, eps)
	if !ok {
		return 0, 0, 0, 0, false
	}
	A, B, C = x, yc, zc
	if params == 2 {
		B = 0
	}

	var ssTot, ssRes float64
	for i := 0; i < n; i++ {
		yhat := A*f1[i] + B*f2[i] + C
		ssRes += (y[i] - yhat) * (y[i] - yhat)
	}
	meanY := 0.0
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(n)
	for _, v := range y {
		ssTot += (v - meanY) * (v - meanY)
	}
	if ssTot < eps {
		r2 = 0.99
	} else {
		r2 = 1 - ssRes/ssTot
	}
	return A, B, C, r2, true
}

// FitHyperbolicOptimalT0 grid-searches t0 in [tLo, tHi] (the timestamps of
// the pre-jump and first-jump samples, per spec §4.A) to maximise the
// 3-parameter hyperbolic fit's R². Two refinement passes partition the
// current interval into Divider equal sub-intervals; the winning edge or
// interior point narrows the interval for the next pass.
func FitHyperbolicOptimalT0(samples []Point, iStart, iEnd int, tLo, tHi float64, eps float64) (A, B, C, t0, r2 float64, ok bool) {
	lo, hi := tLo, tHi
	found := false
	var bestA, bestB, bestC, bestT0, bestR2 float64

	for pass := 0; pass < 2; pass++ {
		if hi <= lo {
			break
		}
		delta := (hi - lo) / float64(Divider)
		bestIdx := -1
		passBestR2 := math.Inf(-1)
		var passA, passB, passC, passT0 float64

		for k := 0; k <= Divider; k++ {
			t0try := lo + float64(k)*delta
			a, b2, c, rr, fitOK := FitHyperbolic(samples, iStart, iEnd, t0try, 3, eps)
			if !fitOK {
				continue
			}
			if rr > passBestR2 {
				passBestR2, passA, passB, passC, passT0, bestIdx = rr, a, b2, c, t0try, k
			}
		}
		if bestIdx == -1 {
			if found {
				break
			}
			return 0, 0, 0, 0, 0, false
		}
		found = true
		bestA, bestB, bestC, bestT0, bestR2 = passA, passB, passC, passT0, passBestR2

		switch {
		case bestIdx == 0:
			hi = lo + 2*delta
		case bestIdx == Divider:
			lo = hi - 2*delta
		default:
			lo = bestT0 - delta
			hi = bestT0 + delta
		}
	}

	if !found {
		return 0, 0, 0, 0, 0, false
	}
	return bestA, bestB, bestC, bestT0, bestR2, true
}
