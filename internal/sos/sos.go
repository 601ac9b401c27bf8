// Package sos implements the SoS ranker and history (spec §4.F, §3
// "History H"): thresholding a completed Transition Period's derived
// parameters into a per-super-cell safety verdict, and maintaining the
// baseline/FIFO history that persists those verdicts across power cycles.
package sos

import (
	"math"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/sample"
	"github.com/algolion/battery-sos/internal/tp"
)

// Rank is the spec's 2-bit per-super-cell safety verdict (spec §6 "Safety
// constants"). Values >= 4 are reserved and must be treated as Unknown by
// consumers.
type Rank uint8

const (
	Unknown Rank = iota
	Normal
	Attention
	Critical
)

func (r Rank) String() string {
	switch r {
	case Normal:
		return "NORMAL"
	case Attention:
		return "ATTENTION"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// RankVector is the per-super-cell latest-results object (spec §4.F
// "Publish the per-super-cell rank vector into the latest-results object").
type RankVector struct {
	Ranks       [sample.SupersPerModule]Rank
	TPIndex     int64
	StartTimeUS int64
}

// Ranker thresholds a completed TP's per-super-cell parameters into a
// RankVector (spec §4.F).
type Ranker struct{}

// rankParam resolves the open question flagged in spec §9: the source's
// two identical NORMAL/ATTENTION guards collapse into a dead ATTENTION
// branch, which this implementation resolves by widening the outer edge of
// the NORMAL band into an explicit ATTENTION band (see SPEC_FULL.md "OPEN
// QUESTION RESOLUTION"):
//
//	|p| in [tau/2, 2*tau]   -> Normal
//	|p| in [tau/4, 4*tau]   -> Attention
//	otherwise               -> Critical
func rankParam(p, tau float64) Rank {
	if tau == 0 {
		return Unknown
	}
	a := math.Abs(p)
	lo2, hi2 := math.Abs(tau)/2, math.Abs(tau)*2
	if a >= lo2 && a <= hi2 {
		return Normal
	}
	lo4, hi4 := math.Abs(tau)/4, math.Abs(tau)*4
	if a >= lo4 && a <= hi4 {
		return Attention
	}
	return Critical
}

// RankSuperCell ranks one super-cell's derived parameters against the
// configured thresholds (spec §4.F): max across parameters, saturating at
// Critical, starting at Unknown. A super-cell the characteriser could not
// fit (res.OK == false) stays Unknown.
func RankSuperCell(res tp.SuperResult, cfg config.Config) Rank {
	if !res.OK {
		return Unknown
	}
	rank := Unknown
	for i, tau := range cfg.SoSThreshold {
		r := rankParam(res.Params[i], tau)
		if r > rank {
			rank = r
		}
	}
	return rank
}

// Rank computes the full per-super-cell RankVector for a completed TP.
func (Ranker) Rank(e *tp.Entry, results []tp.SuperResult, cfg config.Config, tpIndex int64) RankVector {
	rv := RankVector{TPIndex: tpIndex, StartTimeUS: e.StartTimeUS}
	for k, res := range results {
		if k >= sample.SupersPerModule {
			break
		}
		rv.Ranks[k] = RankSuperCell(res, cfg)
	}
	return rv
}
