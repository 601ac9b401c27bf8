// Package tp implements the Transition Period recogniser and characteriser
// (spec §4.D, §4.E): scanning the classified sample stream for a window
// matching the TP grammar, then fitting physical parameters out of it.
package tp

import (
	"github.com/algolion/battery-sos/internal/numeric"
	"github.com/algolion/battery-sos/internal/sample"
)

// ShapeTag is the TP's endpoint-polarity classification (spec §3).
type ShapeTag int

const (
	ShapeUnknown ShapeTag = iota
	ShapeOCToDrop
	ShapeOCToRise
	ShapeDropToOC
	ShapeRiseToOC
)

// CurveCoef holds the 12 curve-fit coefficient slots described in spec §3 /
// §4.E: voltage-3p (A,B,C,t0), voltage-2p (A,C; B=0, t0 shared with V3),
// current-3p (A,B,C,t0), current-2p (A,C; B=0, t0 shared with I3).
type CurveCoef struct {
	V3 [4]float64 // A, B, C, t0
	V2 [2]float64 // A, C
	I3 [4]float64 // A, B, C, t0
	I2 [2]float64 // A, C
}

// Entry is the spec's TP entry E. Counts, the copied-out sample window, the
// current-channel fit and Params[4] are shared across super-cells within one
// completed TP; VA/VD, the voltage fit, VB and the slope fit are overwritten
// per super-cell by Characterize, which returns each super-cell's shape and
// derived parameters in its SuperResult. The struct is reused (not
// reallocated) across super-cells, matching spec §3's "the TP entry is
// overwritten in place per detection attempt".
type Entry struct {
	NQcc, NQccI   int
	NJump, NJumpI int
	NSlope, NSlopeI int
	NTail, NTailI int
	NTP           int

	Shape     ShapeTag
	Completed bool
	Baseline  bool

	StartTimeUS int64
	Samples     []sample.Raw // relative-time, first JUMP at index min(NQcc, NQccI)

	IA, ID float64 // module current, shared across super-cells
	VA, VD float64 // this super-cell's averaged voltage

	SlopeK, SlopeV0 float64
	VB              float64

	Coef   CurveCoef
	Params [5]float64

	SelectedSuper int
}

// TotalV returns n_qcc+n_jump+n_slope+n_tail for the voltage channel.
func (e *Entry) TotalV() int { return e.NQcc + e.NJump + e.NSlope + e.NTail }

// TotalI returns n_qcc_i+n_jump_i+n_slope_i+n_tail_i for the current channel.
func (e *Entry) TotalI() int { return e.NQccI + e.NJumpI + e.NSlopeI + e.NTailI }

// toPoints converts a contiguous, already relative-time sample run into
// numeric.Point values for curve fitting, using which to pick the voltage or
// current channel out of each sample.
func toPoints(samples []sample.Raw, which func(*sample.Raw) float64) []numeric.Point {
	pts := make([]numeric.Point, len(samples))
	for i := range samples {
		pts[i] = numeric.Point{T: samples[i].TimeSeconds(), Y: which(&samples[i])}
	}
	return pts
}
