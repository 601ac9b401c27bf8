// Package master implements the pack-wide aggregator (spec §4.G "The
// master is a bookkeeper"): a trivial mapping from bus reports to array
// slots, with no numerical or state-machine complexity of its own.
package master

import (
	"fmt"

	"github.com/algolion/battery-sos/internal/diag"
	"github.com/algolion/battery-sos/internal/driver"
	"github.com/algolion/battery-sos/internal/sample"
)

// Modules is the pack-wide module count M (spec Glossary "Pack").
const Modules = 16

// RanksPerModule is the number of rank bytes one module contributes, one
// per super-cell (spec §6 "6 bytes of ranks").
const RanksPerModule = sample.SupersPerModule

// TableSize is the full rank table's byte size: Modules * SUPERS_PER_MODULE
// (spec §6 "getSoS() -> &[u8; 192]").
const TableSize = Modules * RanksPerModule

// BusReport is one message received over the inter-controller bus (spec §6
// "[moduleIndex: u8, chunkIndex: u8, 6 x rank: u8] up to 8 bytes").
type BusReport struct {
	ModuleIndex uint8
	ChunkIndex  uint8
	Ranks       [RanksPerModule / 2]byte // 6 ranks per chunk
}

// State mirrors the slave's lifecycle shape (spec §4.G diagram) for the
// master facade.
type State int

const (
	StateUninitialised State = iota
	StateConfigured
	StateRunning
)

// Master is the pack-wide bookkeeper: on each BusReport it writes 6 rank
// bytes into row ModuleIndex at byte offset ChunkIndex*6 of the rank table
// (spec §4.G).
type Master struct {
	state State
	flashR driver.FlashReader
	flashW driver.FlashWriter

	table [TableSize]byte
	diag  diag.Ring
}

// New returns a Master in StateUninitialised.
func New() *Master { return &Master{} }

// SetupInterface records the flash collaborator. Rejects if already
// configured or either callback is nil.
func (m *Master) SetupInterface(r driver.FlashReader, w driver.FlashWriter) error {
	if m.state != StateUninitialised {
		return diag.ErrAlreadyConfigured
	}
	if r == nil || w == nil {
		return diag.ErrNilCallback
	}
	m.flashR, m.flashW = r, w
	m.state = StateConfigured
	return nil
}

// Initialise loads the persisted rank table (a flat TableSize-byte region
// starting at storage offset 0, no header per spec §6 "Persistent state
// layout").
func (m *Master) Initialise() error {
	if m.state != StateConfigured {
		return diag.ErrNotConfigured
	}
	if !m.flashR.FlashRead(0, m.table[:]) {
		m.diag.Record(diag.CodeStorageFailure, diag.KindStorageIO, diag.SeverityWarn,
			"master.Initialise", "rank table read failed, starting from all-UNKNOWN")
	}
	m.state = StateRunning
	return nil
}

// OnBusReport applies one module's chunk of ranks to the table (spec §4.G:
// "a trivial mapping from message -> array slot").
func (m *Master) OnBusReport(r BusReport) error {
	if m.state != StateRunning {
		return fmt.Errorf("master: OnBusReport called while not RUNNING")
	}
	if int(r.ModuleIndex) >= Modules {
		m.diag.Record(diag.CodeOutOfRange, diag.KindRawDataValidation, diag.SeverityWarn,
			"master.OnBusReport", fmt.Sprintf("module index %d out of range", r.ModuleIndex))
		return nil
	}
	rowStart := int(r.ModuleIndex) * RanksPerModule
	chunkStart := rowStart + int(r.ChunkIndex)*len(r.Ranks)
	if chunkStart+len(r.Ranks) > rowStart+RanksPerModule {
		m.diag.Record(diag.CodeOutOfRange, diag.KindRawDataValidation, diag.SeverityWarn,
			"master.OnBusReport", fmt.Sprintf("chunk index %d overflows module row", r.ChunkIndex))
		return nil
	}
	copy(m.table[chunkStart:chunkStart+len(r.Ranks)], r.Ranks[:])
	return nil
}

// GetSoS returns the full pack-wide rank table (spec §6 "&[u8; 192]").
func (m *Master) GetSoS() [TableSize]byte { return m.table }

// DriverAction is reserved and is a no-op (spec §6 "driverAction(u8)
// (reserved, no-op)").
func (m *Master) DriverAction(uint8) {}

// Terminate persists the rank table.
func (m *Master) Terminate() error {
	if m.state != StateRunning {
		return fmt.Errorf("master: Terminate called while not RUNNING")
	}
	if !m.flashW.FlashWrite(0, m.table[:]) {
		m.diag.Record(diag.CodeStorageFailure, diag.KindStorageIO, diag.SeverityError,
			"master.Terminate", "rank table write failed")
		m.state = StateUninitialised
		return diag.ErrStorageWrite
	}
	m.state = StateUninitialised
	return nil
}
