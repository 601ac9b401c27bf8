package tp

import (
	"fmt"
	"math"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/diag"
	"github.com/algolion/battery-sos/internal/numeric"
	"github.com/algolion/battery-sos/internal/ring"
	"github.com/algolion/battery-sos/internal/sample"
)

// SuperResult is one super-cell's characterisation outcome (spec §4.E runs
// "once per completed TP, independently for each super-cell index").
type SuperResult struct {
	Index  int
	OK     bool
	Shape  ShapeTag
	VA, VD float64
	VB     float64
	Params [5]float64
}

// CopyOut copies e.NTP samples out of the ring into e.Samples, aligned so
// the first JUMP lands at index min(n_qcc, n_qcc_i), and re-bases
// timestamps to zero (spec §4.E "Copy-out"). nQccMin is the window-start
// offset used by the Recognizer's counting pass.
func CopyOut(e *Entry, rb *ring.Ring, nQccMin int) {
	n := e.NTP
	if n > ring.TPMax {
		n = ring.TPMax
	}
	if n <= 0 {
		return
	}
	start := int64(-nQccMin)
	e.Samples = make([]sample.Raw, n)
	for i := 0; i < n; i++ {
		e.Samples[i] = *rb.At(start + int64(i))
	}
	e.StartTimeUS = e.Samples[0].TimeUS
	for i := range e.Samples {
		e.Samples[i].TimeUS -= e.StartTimeUS
	}
}

// averageVoltageWindow averages super-cell k's voltage over `count`
// consecutive samples of e.Samples starting at startIdx.
func averageVoltageWindow(samples []sample.Raw, startIdx, count, k int) (v float64, ok bool) {
	if count <= 0 || startIdx < 0 || startIdx+count > len(samples) {
		return 0, false
	}
	var sum float64
	for j := 0; j < count; j++ {
		sum += samples[startIdx+j].VoltageVolts(k)
	}
	return sum / float64(count), true
}

// averageCurrentWindow averages module current over `count` consecutive
// samples of e.Samples starting at startIdx.
func averageCurrentWindow(samples []sample.Raw, startIdx, count int) (i float64, ok bool) {
	if count <= 0 || startIdx < 0 || startIdx+count > len(samples) {
		return 0, false
	}
	var sum float64
	for j := 0; j < count; j++ {
		sum += samples[startIdx+j].CurrentAmps()
	}
	return sum / float64(count), true
}

// fitAt runs FitHyperbolic at a fixed t0 and discards the R².
func fitAt(pts []numeric.Point, iS, iE int, t0 float64, params int, eps float64) (A, B, C float64, ok bool) {
	a, b, c, _, fitOK := numeric.FitHyperbolic(pts, iS, iE, t0, params, eps)
	return a, b, c, fitOK
}

func shapeTag(va, vd, ia, id, maxCurrent0 float64) ShapeTag {
	switch {
	case va > vd:
		if math.Abs(ia) < math.Abs(id) {
			return ShapeOCToDrop
		}
		return ShapeDropToOC
	case va < vd:
		if math.Abs(ia) < math.Abs(id) {
			return ShapeOCToRise
		}
		return ShapeRiseToOC
	default:
		return ShapeUnknown
	}
}

// Characterize runs endpoint averaging, curve fitting, and derived-parameter
// computation for every super-cell of a completed TP entry (spec §4.E). The
// current-channel fit and the A/D current averages are computed once and
// shared, since current is a module-wide quantity; the voltage fit and
// derived parameters are recomputed per super-cell.
func Characterize(e *Entry, cfg config.Config, d *diag.Ring) []SuperResult {
	results := make([]SuperResult, sample.SupersPerModule)

	firstJump := e.NQcc
	slopeEnd := e.NQcc + e.NJump + e.NSlope

	aEnd := firstJump - cfg.Endpoints.OffPointALeft
	aStart := aEnd - cfg.Endpoints.OffPointCount + 1
	dStart := slopeEnd + cfg.Endpoints.OffPointDRight

	ia, okA := averageCurrentWindow(e.Samples, aStart, cfg.Endpoints.OffPointCount)
	idv, okD := averageCurrentWindow(e.Samples, dStart, cfg.Endpoints.OffPointCount)
	if !okA || !okD {
		return results
	}
	e.IA, e.ID = ia, idv

	iS := e.NQcc + 1
	iE := e.NQcc + e.NJump + e.NSlope
	if iE < iS+6 {
		iE = iS + 6
	}
	if iE >= len(e.Samples) {
		iE = len(e.Samples) - 1
	}

	if e.NJumpI > 0 {
		iSi := e.NQccI + 1
		iEi := e.NQccI + e.NJumpI + e.NSlopeI
		if iEi < iSi+6 {
			iEi = iSi + 6
		}
		if iEi < len(e.Samples) && iSi-1 >= 0 && e.Samples[iSi-1].CTypeI.HasJump() {
			pts := toPoints(e.Samples, func(s *sample.Raw) float64 { return s.CurrentAmps() })
			tLo, tHi := pts[iSi-1].T, pts[iSi].T
			a, b, c, t0, r2, ok := numeric.FitHyperbolicOptimalT0(pts, iSi, iEi, tLo, tHi, cfg.EpsilonZero)
			if ok && r2 >= 0.10 {
				e.Coef.I3 = [4]float64{a, b, c, t0}
			} else {
				t0 = pts[iSi].T
				e.Coef.I3 = [4]float64{0, 0, 0, t0}
				d.Record(diag.CodeApproxI3, diag.KindNumericFailure, diag.SeverityInfo,
					"tp.Characterize", "current-3p fit below R² floor, using approximate t0")
			}
			a2, _, c2, ok2 := fitAt(pts, iSi, iEi, e.Coef.I3[3], 2, cfg.EpsilonZero)
			if ok2 {
				e.Coef.I2 = [2]float64{a2, c2}
				e.Params[4] = math.Abs(a2) * 1e-15
			}
		}
	}

	for k := 0; k < sample.SupersPerModule; k++ {
		res := SuperResult{Index: k}

		va, okVA := averageVoltageWindow(e.Samples, aStart, cfg.Endpoints.OffPointCount, k)
		vd, okVD := averageVoltageWindow(e.Samples, dStart, cfg.Endpoints.OffPointCount, k)
		if !okVA || !okVD {
			results[k] = res
			continue
		}

		res.VA, res.VD = va, vd
		res.Shape = shapeTag(va, vd, ia, idv, cfg.MaxCurrent0Amps)
		if cfg.Policy.StrongTPType && math.Abs(ia) > cfg.MaxCurrent0Amps && math.Abs(idv) > cfg.MaxCurrent0Amps {
			d.Record(diag.CodePointsADNotOC, diag.KindGrammarViolation, diag.SeverityInfo,
				"tp.Characterize", fmt.Sprintf("super-cell %d: neither endpoint near open-circuit", k))
			results[k] = res
			continue
		}

		if iS-1 < 0 || iE >= len(e.Samples) || iS > iE || !e.Samples[iS-1].CTypeV.HasJump() {
			results[k] = res
			continue
		}
		pts := toPoints(e.Samples, func(s *sample.Raw) float64 { return s.VoltageVolts(k) })

		tLo, tHi := pts[iS-1].T, pts[iS].T
		a, b, c, t0, r2, ok := numeric.FitHyperbolicOptimalT0(pts, iS, iE, tLo, tHi, cfg.EpsilonZero)
		if ok && r2 >= 0.10 {
			e.Coef.V3 = [4]float64{a, b, c, t0}
		} else {
			t0 = pts[e.NQcc+1].T
			e.Coef.V3 = [4]float64{0, 0, 0, t0}
			d.Record(diag.CodeApproxV3, diag.KindNumericFailure, diag.SeverityInfo,
				"tp.Characterize", fmt.Sprintf("super-cell %d: voltage-3p fit below R² floor", k))
		}
		a2, _, c2, ok2 := fitAt(pts, iS, iE, t0, 2, cfg.EpsilonZero)
		if ok2 {
			e.Coef.V2 = [2]float64{a2, c2}
			res.Params[3] = math.Abs(a2) * 1e-12
		}

		slopeK, slopeV0, slopeR2 := slopeRegression(e, cfg, k, res.Shape)
		res.VB = slopeK*t0 + slopeV0
		e.VA, e.VD, e.VB = va, vd, res.VB
		e.SlopeK, e.SlopeV0 = slopeK, slopeV0
		if math.Abs(slopeK) > cfg.EpsilonZero && slopeR2 >= cfg.TPDetSlopeR2 {
			res.Params[2] = (idv - ia) / slopeK * 1e-6
		}

		denom := ia - idv
		if math.Abs(denom) > cfg.EpsilonZero {
			res.Params[0] = (va - res.VB) / denom
			res.Params[1] = (res.VB - vd) / denom
		} else {
			d.Record(diag.CodeSingularFit, diag.KindNumericFailure, diag.SeverityInfo,
				"tp.Characterize", fmt.Sprintf("super-cell %d: I_A == I_D, resistance undefined", k))
		}
		res.Params[4] = e.Params[4]
		res.OK = true
		results[k] = res
	}

	return results
}

// slopeRegression regresses super-cell k's voltage against time over the
// slope phase, accepting the fit only if its sign matches the TP's
// drop/rise polarity (spec §4.E "Slope linear regression").
func slopeRegression(e *Entry, cfg config.Config, k int, shape ShapeTag) (slopeK, slopeV0, r2 float64) {
	slopeStart := e.NQcc + e.NJump
	slopeEndIdx := slopeStart + e.NSlope + 1
	if slopeEndIdx >= len(e.Samples) {
		slopeEndIdx = len(e.Samples) - 1
	}
	if slopeEndIdx <= slopeStart {
		return 0, 0, 0
	}

	ts := make([]float64, 0, slopeEndIdx-slopeStart+1)
	vs := make([]float64, 0, slopeEndIdx-slopeStart+1)
	for i := slopeStart; i <= slopeEndIdx; i++ {
		ts = append(ts, e.Samples[i].TimeSeconds())
		vs = append(vs, e.Samples[i].VoltageVolts(k))
	}

	reg, ok := numeric.LinearRegression(ts, vs, cfg.EpsilonZero)
	if !ok {
		mean, _, _ := numeric.Average(vs)
		return 0, mean, 0
	}

	dropPolarity := shape == ShapeOCToDrop || shape == ShapeDropToOC
	signOK := (dropPolarity && reg.Slope < 0) || (!dropPolarity && reg.Slope > 0)
	if !signOK {
		mean, _, _ := numeric.Average(vs)
		return 0, mean, 0
	}
	return reg.Slope, reg.Intercept, reg.R2
}
