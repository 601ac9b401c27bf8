// Package slave implements Component G's slave half (spec §4.G):
// lifecycle, the per-sample trigger, and the SoS query, wiring together the
// ring, classifier, TP recogniser/characteriser, and SoS ranker/history
// into the single-threaded, event-driven pipeline spec §5 describes.
package slave

import (
	"fmt"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/classify"
	"github.com/algolion/battery-sos/internal/diag"
	"github.com/algolion/battery-sos/internal/driver"
	"github.com/algolion/battery-sos/internal/ring"
	"github.com/algolion/battery-sos/internal/sample"
	"github.com/algolion/battery-sos/internal/sos"
	"github.com/algolion/battery-sos/internal/tp"
	"github.com/sirupsen/logrus"
)

// State is the slave's lifecycle state (spec §4.G state machine).
type State int

const (
	StateUninitialised State = iota
	StateConfigured
	StateRunning
)

// InitResult is the status code Initialise returns (spec §6 "initialise()
// -> {0, 0x01, 0x02}").
type InitResult uint8

const (
	InitOK             InitResult = 0
	InitInterfaceError InitResult = 0x01
	InitIdentityError  InitResult = 0x02
)

// globals is the spec's per-session Globals G: current sample index,
// skip-counter debounce, accumulated charge, the completed-TP index, and the
// latest published rank vector.
type globals struct {
	n            int64
	skip         int64
	chargeAs     float64 // accumulated ∫I dt, Ampere-seconds
	tpIndex      int64
	lastRank     sos.RankVector
	haveLastRank bool
}

// Slave is the slave facade: Component G wired to Components A-F.
type Slave struct {
	state State
	iface driver.Interface
	cfg   config.Config
	g     globals

	ring Ring
	diag diag.Ring
	hist *sos.History

	rec tp.Recognizer
	rnk sos.Ranker
}

// Ring is a narrow alias kept local so the package's exported surface
// doesn't leak internal/ring's import path to callers that only need
// Slave.
type Ring = ring.Ring

// New returns a Slave in StateUninitialised.
func New() *Slave {
	return &Slave{}
}

// SetupInterface records the six driver callbacks and bus-control ID (spec
// §4.G). Rejects if any callback is nil or the slave is already configured.
func (s *Slave) SetupInterface(iface driver.Interface) error {
	if s.state != StateUninitialised {
		s.diag.Record(diag.CodeAlreadyConfigured, diag.KindInterfaceMisuse, diag.SeverityError,
			"slave.SetupInterface", "interface already configured")
		return diag.ErrAlreadyConfigured
	}
	if !iface.Complete() {
		s.diag.Record(diag.CodeNullCallback, diag.KindInterfaceMisuse, diag.SeverityError,
			"slave.SetupInterface", "one or more driver callbacks is nil")
		return diag.ErrNilCallback
	}
	s.iface = iface
	s.state = StateConfigured
	logrus.Infof("slave: interface configured, bus control id %d", iface.BusControlID)
	return nil
}

// Initialise runs the hardware-identity check, resets Config/Globals, and
// loads History from storage (spec §4.G).
func (s *Slave) Initialise(cfg config.Config) InitResult {
	if s.state != StateConfigured {
		s.diag.Record(diag.CodeNullCallback, diag.KindInterfaceMisuse, diag.SeverityError,
			"slave.Initialise", "SetupInterface not called, or already running")
		return InitInterfaceError
	}
	if s.iface.Identity != nil && !s.iface.Identity.CheckIdentity() {
		s.diag.Record(diag.CodeIdentityFailure, diag.KindHardwareIdentity, diag.SeverityError,
			"slave.Initialise", "hardware identity check failed")
		return InitIdentityError
	}

	s.cfg = cfg
	s.g = globals{}
	s.ring = Ring{}
	s.diag = diag.Ring{}

	hist, err := sos.Load(s.iface.FlashR, &s.diag)
	if err != nil {
		logrus.WithError(err).Warn("slave: history load failed, starting with empty history")
		hist = &sos.History{}
	}
	s.hist = hist
	s.restoreLastRank()

	s.state = StateRunning
	logrus.Info("slave: initialised, entering RUNNING")
	return InitOK
}

// restoreLastRank republishes the latest-history record (if any) as the
// live rank vector, so a restart presents the same view getSoS had at the
// prior terminate (spec §8 "persistence round-trip").
func (s *Slave) restoreLastRank() {
	all := s.hist.All()
	if len(all) == 0 {
		return
	}
	last := all[len(all)-1]
	var rv sos.RankVector
	rv.StartTimeUS = last.StartTimeUS
	for k := range rv.Ranks {
		if !last.OK[k] {
			continue
		}
		rv.Ranks[k] = sos.RankSuperCell(tp.SuperResult{OK: true, Params: last.Params[k]}, s.cfg)
	}
	s.g.lastRank = rv
	s.g.haveLastRank = true
}

func (s *Slave) withinBounds(cur int32, volts [sample.SupersPerModule]uint16) bool {
	ca := float64(cur) * 1e-4
	if ca > s.cfg.MaxCurrentAmps || ca < -s.cfg.MaxCurrentAmps {
		return false
	}
	for _, v := range volts {
		va := float64(v) * 1e-4
		if va < s.cfg.MinVoltageVolts || va > s.cfg.MaxVoltageVolts {
			return false
		}
	}
	return true
}

// EventTrigger processes one ADC tick (spec §4.G): read + bounds-check the
// new sample, classify the previous sample retroactively, push, integrate
// charge, then either decrement the skip counter or run the TP
// recogniser/characteriser/ranker.
func (s *Slave) EventTrigger() error {
	if s.state != StateRunning {
		return fmt.Errorf("slave: EventTrigger called while not RUNNING")
	}

	timeUS := int64(s.iface.Clock.TimeMS()) * 1000
	cur := s.iface.Current.Current()
	volts := s.iface.Voltages.Voltages()

	if !s.withinBounds(cur, volts) {
		s.diag.Record(diag.CodeOutOfRange, diag.KindRawDataValidation, diag.SeverityWarn,
			"slave.EventTrigger", "sample rejected: current or voltage out of bounds")
		return nil
	}

	next := sample.Raw{TimeUS: timeUS, Current: cur, Voltage: volts}

	if s.g.n > 0 {
		prev := s.ring.Last()
		classify.CheckTimeBreak(prev, &next, s.cfg, &s.diag)
		classify.Classify(prev, &next, s.cfg)
		dt := next.TimeSeconds() - prev.TimeSeconds()
		if dt > 0 {
			s.g.chargeAs += 0.5 * (prev.CurrentAmps() + next.CurrentAmps()) * dt
		}
	}

	s.ring.Push(next)
	s.g.n++

	if s.g.skip > 0 {
		s.g.skip--
		return nil
	}
	if s.ring.N() < ring.StartOffset+int64(s.cfg.NQCC.Min) {
		return nil
	}

	s.attemptTP()
	return nil
}

// attemptTP runs one Recognizer.Attempt and, on success, characterisation
// and ranking, updating skip/history/last-rank as a side effect.
func (s *Slave) attemptTP() {
	entry, advance := s.rec.Attempt(&s.ring, s.cfg, &s.diag)
	if advance > 1 {
		s.g.skip = advance - 1
	}
	if entry == nil {
		return
	}

	tp.CopyOut(entry, &s.ring, s.cfg.NQCC.Min)
	results := tp.Characterize(entry, s.cfg, &s.diag)

	rv := s.rnk.Rank(entry, results, s.cfg, s.g.tpIndex)
	s.g.tpIndex++
	s.g.lastRank = rv
	s.g.haveLastRank = true

	rec := sos.NewRecord(entry, results)
	s.hist.Add(rec)
	logrus.WithFields(logrus.Fields{"tp_index": rv.TPIndex, "n_tp": entry.NTP}).Debug("slave: TP completed")
}

// Terminate drains up to 10 additional recogniser attempts to flush any
// in-flight TP, then commits History to storage (spec §4.G).
func (s *Slave) Terminate() error {
	if s.state != StateRunning {
		return fmt.Errorf("slave: Terminate called while not RUNNING")
	}
	for i := 0; i < 10; i++ {
		s.ring.DrainAdvance()
		s.attemptTP()
	}

	err := s.hist.Commit(s.iface.FlashW, &s.diag)
	s.state = StateUninitialised
	if err != nil {
		return fmt.Errorf("slave: terminate: %w", err)
	}
	logrus.Info("slave: terminated, history committed")
	return nil
}

// GetSoS returns the latest published per-super-cell rank vector, all
// UNKNOWN until the first completed TP (spec §4.G, §6 "getSoS() ->
// &[u8; 12]").
func (s *Slave) GetSoS() [sample.SupersPerModule]byte {
	var out [sample.SupersPerModule]byte
	for k, r := range s.g.lastRank.Ranks {
		out[k] = byte(r)
	}
	return out
}

// SoC returns the current State-of-Charge estimate: accumulated charge
// normalised by nominal pack capacity (spec Glossary "SoC").
func (s *Slave) SoC() float64 {
	if s.cfg.NominalCapacityAh == 0 {
		return 0
	}
	return s.g.chargeAs / 3600.0 / s.cfg.NominalCapacityAh
}

// Diagnostics exposes the diagnostic ring for bench tooling (spec §7);
// production code need not call this.
func (s *Slave) Diagnostics() *diag.Ring { return &s.diag }
