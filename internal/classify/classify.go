// Package classify implements the sample classifier (spec §4.C): for each
// incoming sample, compute voltage and current derivatives against the
// previous sample and emit a bitmask of classes.
package classify

import (
	"fmt"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/diag"
	"github.com/algolion/battery-sos/internal/sample"
)

// Sample classification is retroactive: a sample's class bitmask can only be
// known once the *next* sample arrives (the derivative needs both ends), so
// Classify mutates prev in place rather than curr. See spec §9, "Hidden
// state in classification".

// CheckTimeBreak marks curr with TimeBreak if the gap since prev falls
// outside [MinSamplingPeriodUS, MaxSamplingPeriodUS]. Must be called before
// Classify, since Classify's retroactive write depends on whether the
// *previous* call already marked a break.
func CheckTimeBreak(prev, curr *sample.Raw, cfg config.Config, d *diag.Ring) {
	dt := curr.TimeUS - prev.TimeUS
	if dt < cfg.MinSamplingPeriodUS || dt > cfg.MaxSamplingPeriodUS {
		curr.CTypeV |= sample.TimeBreak
		curr.CTypeI |= sample.TimeBreak
		if d != nil {
			d.Record(diag.CodeTimeBreak, diag.KindRawDataValidation, diag.SeverityWarn,
				"classify.CheckTimeBreak", fmt.Sprintf("sampling gap %d us outside [%d,%d]", dt, cfg.MinSamplingPeriodUS, cfg.MaxSamplingPeriodUS))
		}
	}
}

// Classify computes prev's class bitmasks using the forward derivative to
// curr, and writes them into prev.CTypeV / prev.CTypeI. If prev already
// carries TimeBreak (set by a prior CheckTimeBreak call when prev was the
// "new" sample), classification is skipped: the break propagates forward
// and prev keeps only its TimeBreak bit.
func Classify(prev, curr *sample.Raw, cfg config.Config) {
	if prev.CTypeV.HasTimeBreak() || prev.CTypeI.HasTimeBreak() {
		return
	}

	dtSeconds := float64(curr.TimeUS-prev.TimeUS) * 1e-6
	if dtSeconds <= 0 {
		return
	}

	dIdt := (curr.CurrentAmps() - prev.CurrentAmps()) / dtSeconds

	var dVdt float64
	var maxAbs float64
	for k := 0; k < sample.SupersPerModule; k++ {
		d := (curr.VoltageVolts(k) - prev.VoltageVolts(k)) / dtSeconds
		if abs(d) > maxAbs {
			maxAbs = abs(d)
			dVdt = d
		}
	}

	prev.CTypeV |= classifyOne(dVdt, cfg.Voltage)
	prev.CTypeI |= classifyOne(dIdt, cfg.Current)
}

func classifyOne(d float64, th config.DerivativeThresholds) sample.ClassMask {
	a := abs(d)
	var m sample.ClassMask

	switch {
	case a >= th.JumpDer:
		if d > 0 {
			m |= sample.JumpRise
		} else {
			m |= sample.JumpDrop
		}
	case a >= th.SlopeDer:
		if d > 0 {
			m |= sample.SlopeRise
		} else {
			m |= sample.SlopeDrop
		}
	default:
		if a < th.QCCDer {
			m |= sample.QCC
		}
		if a < th.TailDer {
			m |= sample.Tail
		}
	}
	return m
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
