// Package driver defines the external collaborator interfaces the slave and
// master facades depend on (spec §6 "External Interfaces"): the RTC/ADC
// sampling callbacks, the non-volatile flash I/O, and the hardware-identity
// check. Production firmware supplies its own bindings; this package also
// ships a deterministic synthetic-trace implementation used by tests and
// the CLI replay tool.
package driver

import "github.com/algolion/battery-sos/internal/sample"

// Clock reports milliseconds since reset, monotone (spec §6 "time() -> u32").
type Clock interface {
	TimeMS() uint32
}

// VoltageSource reports one voltage reading per super-cell, units of 100µV
// (spec §6 "voltages() -> [u16; SUPERS_PER_MODULE]").
type VoltageSource interface {
	Voltages() [sample.SupersPerModule]uint16
}

// CurrentSource reports the module current, units of 100µA, positive =
// charge (spec §6 "current() -> i32").
type CurrentSource interface {
	Current() int32
}

// TemperatureSource reports 8 temperature readings in centi-Kelvin. Unused
// by the core pipeline today; read for future extension (spec §6).
type TemperatureSource interface {
	Temperatures() [8]uint16
}

// FlashReader reads len(buf) bytes starting at address into buf, reporting
// whether the read succeeded (spec §6 "flashRead(address, buf, len) -> ok?").
type FlashReader interface {
	FlashRead(address uint32, buf []byte) bool
}

// FlashWriter writes buf to non-volatile storage starting at address,
// reporting whether the write succeeded (spec §6 "flashWrite(buf, len) ->
// ok?"; generalised here to take an address, symmetric with FlashRead, so a
// multi-page payload can be written out of order or retried per page
// without the writer tracking an implicit cursor). len(buf) must not exceed
// 256 bytes per call; callers chunk larger payloads across multiple calls.
type FlashWriter interface {
	FlashWrite(address uint32, buf []byte) bool
}

// MaxFlashChunk is the maximum number of bytes per flash call (spec §6
// "len <= 256 bytes per call"). The FlashWrite implementations in this
// repository reject larger buffers; the FlashRead implementations do not
// check the length.
const MaxFlashChunk = 256

// IdentityChecker is the hardware ID / expiry-date collaborator (spec §1,
// §9 "Hardware-specific clauses": licence enforcement, out of scope here
// beyond its ok|fail interface).
type IdentityChecker interface {
	CheckIdentity() bool
}

// Interface bundles the six driver capabilities plus the bus-control ID
// that Slave.SetupInterface records (spec §4.G: "record the six I/O
// callbacks and a bus-control ID").
type Interface struct {
	Clock        Clock
	Voltages     VoltageSource
	Current      CurrentSource
	Temperatures TemperatureSource
	FlashR       FlashReader
	FlashW       FlashWriter

	// Identity is the hardware-identity check collaborator (spec §4.G:
	// run separately during Initialise, not one of the six I/O callbacks
	// SetupInterface's null-check covers).
	Identity IdentityChecker

	BusControlID uint8
}

// Complete reports whether every callback is present (spec §4.G:
// "Reject if any callback is null").
func (i Interface) Complete() bool {
	return i.Clock != nil && i.Voltages != nil && i.Current != nil &&
		i.Temperatures != nil && i.FlashR != nil && i.FlashW != nil
}
