package tp

import (
	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/diag"
	"github.com/algolion/battery-sos/internal/ring"
	"github.com/algolion/battery-sos/internal/sample"
)

// counts accumulates one channel's pass over the candidate window, and is
// the explicit state carried by the QCC/JUMP/SLOPE/TAIL state machine
// suggested in spec §9.
type counts struct {
	qcc, jump, slope, tail int
	direction              sample.ClassMask // sample.JumpRise or sample.JumpDrop, once seen
}

func (c counts) total() int { return c.qcc + c.jump + c.slope + c.tail }

// Recognizer scans the ring for a window matching the TP grammar
// (spec §4.D): QCC* JUMP+ SLOPE* TAIL*, independently on the voltage and
// current channel, then reconciles the two.
type Recognizer struct{}

// Attempt runs one detection attempt at the ring's current inspection
// point. It returns the completed entry (nil on failure) and the number of
// samples the caller's skip counter should advance by before the next
// attempt.
func (rec *Recognizer) Attempt(rb *ring.Ring, cfg config.Config, d *diag.Ring) (*Entry, int64) {
	cand := rb.At(0)
	if !(cand.CTypeV.HasJump() || cand.CTypeI.HasJump()) {
		return nil, 1
	}

	nQccMin := cfg.NQCC.Min
	for off := -int64(nQccMin); off < 0; off++ {
		s := rb.At(off)
		combined := s.CTypeV | s.CTypeI
		if combined.HasTimeBreak() || combined.HasJump() {
			return nil, 1
		}
		if cfg.Policy.StrongQCC && combined.HasSlope() {
			return nil, 1
		}
	}

	cntV, okV := countPass(rb, cfg, d, nQccMin, func(s *sample.Raw) sample.ClassMask { return s.CTypeV })
	cntI, okI := countPass(rb, cfg, d, nQccMin, func(s *sample.Raw) sample.ClassMask { return s.CTypeI })

	advance := func() int64 {
		return int64(1 + max(cntV.jump+cntV.qcc, cntI.jump+cntI.qcc) - nQccMin)
	}

	if !okV || !okI {
		return nil, advance()
	}
	if cntV.jump == 0 || cntI.jump == 0 {
		d.Record(diag.CodeNoJumpChannel, diag.KindGrammarViolation, diag.SeverityInfo,
			"tp.Recognizer.Attempt", "TP candidate missing a JUMP on voltage or current channel")
		return nil, advance()
	}

	totalV := cntV.total()
	totalI := cntI.total()
	if totalV > totalI {
		cntI.tail += totalV - totalI
	} else if totalI > totalV {
		cntV.tail += totalI - totalV
		totalV = totalI
	}

	if cfg.Policy.SlopeMustExist && cntV.slope == 0 {
		d.Record(diag.CodeSlopeMissing, diag.KindGrammarViolation, diag.SeverityInfo,
			"tp.Recognizer.Attempt", "slope_must_exist policy violated: no SLOPE samples")
		return nil, advance()
	}

	if cfg.Policy.AlignSlopes {
		qccDelta := cntV.qcc - cntI.qcc
		if qccDelta < -1 || qccDelta > 1 {
			// QCC counts disagree by more than one sample: nothing to align.
		} else {
			jumpEndV := cntV.qcc + cntV.jump
			jumpEndI := cntI.qcc + cntI.jump
			if jumpEndV < jumpEndI {
				delta := jumpEndI - jumpEndV
				if cntV.slope < delta {
					d.Record(diag.CodeSlopeInTail, diag.KindGrammarViolation, diag.SeverityInfo,
						"tp.Recognizer.Attempt", "align_slopes: insufficient SLOPE samples to shift")
					return nil, advance()
				}
				cntV.tail -= delta
				cntV.jump += delta
			}
		}
	}

	e := &Entry{
		NQcc: cntV.qcc, NJump: cntV.jump, NSlope: cntV.slope, NTail: cntV.tail,
		NQccI: cntI.qcc, NJumpI: cntI.jump, NSlopeI: cntI.slope, NTailI: cntI.tail,
		Completed: true,
	}
	e.NTP = e.TotalV()
	if e.TotalV() != e.TotalI() {
		// Reconciliation above guarantees equality; defensive only.
		e.NTP = e.TotalV()
	}
	return e, advance()
}

// countPass runs the QCC/JUMP/SLOPE/TAIL state machine over one channel's
// class bitmasks, starting at offset -nQccMin and walking forward up to
// tpDetCntMax-nQccMin samples.
func countPass(rb *ring.Ring, cfg config.Config, d *diag.Ring, nQccMin int, channel func(*sample.Raw) sample.ClassMask) (counts, bool) {
	var c counts
	limit := cfg.TPDetCntMax - nQccMin

	for i := 0; i < limit; i++ {
		off := int64(-nQccMin + i)
		s := rb.At(off)
		m := channel(s)

		if m.HasTimeBreak() {
			d.Record(diag.CodeTimeBreak, diag.KindGrammarViolation, diag.SeverityInfo,
				"tp.countPass", "TIME_BREAK inside candidate TP window")
			return c, false
		}

		switch {
		case m.HasJump():
			if c.jump == 0 {
				if m&sample.JumpRise != 0 {
					c.direction = sample.JumpRise
				} else {
					c.direction = sample.JumpDrop
				}
			} else if cfg.Policy.StrongJump {
				dir := sample.JumpDrop
				if m&sample.JumpRise != 0 {
					dir = sample.JumpRise
				}
				if dir != c.direction {
					d.Record(diag.CodeJumpDD, diag.KindGrammarViolation, diag.SeverityInfo,
						"tp.countPass", "conflicting JUMP direction")
					return c, false
				}
			}
			if c.tail > 0 {
				if cfg.Policy.StrongTail {
					d.Record(diag.CodeJumpInTail, diag.KindGrammarViolation, diag.SeverityInfo,
						"tp.countPass", "JUMP found after TAIL started")
					return c, false
				}
				c.jump--
				c.tail++
			}
			if c.slope > 0 {
				if cfg.Policy.StrongJumpSlope {
					d.Record(diag.CodeSlopeInJump, diag.KindGrammarViolation, diag.SeverityInfo,
						"tp.countPass", "SLOPE found before JUMP completed")
					return c, false
				}
				c.jump += c.slope
				c.slope = 0
			}
			c.jump++

		case c.jump == 0:
			c.qcc++

		case m.HasSlope():
			if cfg.Policy.StrongSlope {
				rising := m&sample.SlopeRise != 0
				jumpRising := c.direction == sample.JumpRise
				if rising != jumpRising {
					d.Record(diag.CodeSlopeDD, diag.KindGrammarViolation, diag.SeverityInfo,
						"tp.countPass", "SLOPE direction conflicts with JUMP direction")
					return c, false
				}
			}
			if cfg.Policy.StrongSlopeTail || c.tail == 0 {
				c.slope += c.tail
				c.tail = 0
				c.slope++
			} else if cfg.Policy.StrongDRight && c.tail > 0 {
				d.Record(diag.CodeSlopeInTail, diag.KindGrammarViolation, diag.SeverityInfo,
					"tp.countPass", "SLOPE found after TAIL under strong_d_right policy")
				return c, false
			} else {
				c.tail++
			}

		default:
			if c.tail >= cfg.NTail.Min {
				return c, true
			}
			c.tail++
		}
	}
	return c, true
}
