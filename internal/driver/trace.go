package driver

import "github.com/algolion/battery-sos/internal/sample"

// Frame is one synthetic ADC reading: spec §6's three time-varying driver
// capabilities bundled into a single advanceable record.
type Frame struct {
	TimeMS   uint32
	Current  int32
	Voltages [sample.SupersPerModule]uint16
}

// TraceDriver replays a fixed, pre-built sequence of Frames as the six
// driver capabilities (spec §6), used by the CLI replay tool and by the
// end-to-end tests in spec §8. Flash I/O is backed by an in-memory byte
// slice so a trace replay round-trips History without touching disk;
// production firmware supplies a real flash binding instead.
type TraceDriver struct {
	frames []Frame
	idx    int

	flash      []byte
	identityOK bool
}

// NewTraceDriver builds a TraceDriver over frames, with the identity check
// defaulting to ok (flip via SetIdentityOK to exercise the failure path).
func NewTraceDriver(frames []Frame) *TraceDriver {
	return &TraceDriver{frames: frames, flash: make([]byte, 4096), identityOK: true}
}

// SetIdentityOK overrides the hardware-identity check result.
func (t *TraceDriver) SetIdentityOK(ok bool) { t.identityOK = ok }

// Len reports how many frames remain to be consumed.
func (t *TraceDriver) Len() int { return len(t.frames) - t.idx }

// Advance moves to the next frame. Must be called once per simulated
// eventTrigger before reading Clock/Voltages/Current for that tick; the
// zero'th frame is current immediately after NewTraceDriver.
func (t *TraceDriver) Advance() bool {
	if t.idx+1 >= len(t.frames) {
		return false
	}
	t.idx++
	return true
}

func (t *TraceDriver) current() Frame {
	if t.idx >= len(t.frames) {
		return Frame{}
	}
	return t.frames[t.idx]
}

func (t *TraceDriver) TimeMS() uint32                           { return t.current().TimeMS }
func (t *TraceDriver) Current() int32                           { return t.current().Current }
func (t *TraceDriver) Voltages() [sample.SupersPerModule]uint16 { return t.current().Voltages }
func (t *TraceDriver) Temperatures() [8]uint16                  { return [8]uint16{} }
func (t *TraceDriver) CheckIdentity() bool                      { return t.identityOK }

func (t *TraceDriver) FlashRead(address uint32, buf []byte) bool {
	if int(address)+len(buf) > len(t.flash) {
		return false
	}
	copy(buf, t.flash[address:int(address)+len(buf)])
	return true
}

func (t *TraceDriver) FlashWrite(address uint32, buf []byte) bool {
	if len(buf) > MaxFlashChunk {
		return false
	}
	if int(address)+len(buf) > len(t.flash) {
		return false
	}
	copy(t.flash[address:], buf)
	return true
}

// Interface returns the driver.Interface bundle wired to this TraceDriver.
func (t *TraceDriver) Interface() Interface {
	return Interface{
		Clock:        t,
		Voltages:     t,
		Current:      t,
		Temperatures: t,
		FlashR:       t,
		FlashW:       t,
		Identity:     t,
		BusControlID: 1,
	}
}
