package slave

import (
	"testing"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/driver"
	"github.com/algolion/battery-sos/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatFrames(n int) []driver.Frame {
	frames := make([]driver.Frame, n)
	for i := range frames {
		frames[i].TimeMS = uint32(i * 50)
		frames[i].Current = -18700
		for k := range frames[i].Voltages {
			frames[i].Voltages[k] = 40000
		}
	}
	return frames
}

func newRunningSlave(t *testing.T, frames []driver.Frame) (*Slave, *driver.TraceDriver) {
	t.Helper()
	td := driver.NewTraceDriver(frames)
	sv := New()
	require.NoError(t, sv.SetupInterface(td.Interface()))
	require.Equal(t, InitOK, sv.Initialise(config.DefaultConfig()))
	return sv, td
}

func replay(t *testing.T, sv *Slave, td *driver.TraceDriver, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, sv.EventTrigger())
		if i < n-1 {
			td.Advance()
		}
	}
}

// TestSlave_FlatTrace_NoTPAllUnknown is spec §8 scenario 1: 30 samples at
// 50ms spacing, constant V and I across all super-cells.
func TestSlave_FlatTrace_NoTPAllUnknown(t *testing.T) {
	// GIVEN a perfectly flat 30-sample trace
	frames := flatFrames(30)
	sv, td := newRunningSlave(t, frames)

	// WHEN replayed end to end
	replay(t, sv, td, len(frames))
	require.NoError(t, sv.Terminate())

	// THEN getSoS returns all UNKNOWN
	ranks := sv.GetSoS()
	for k, r := range ranks {
		assert.Equal(t, byte(0), r, "super-cell %d", k)
	}
}

// TestSlave_TimeBreak_RecordsDiagnosticNoTPCompletes is spec §8 scenario 4:
// a 1-second gap inserted mid-stream.
func TestSlave_TimeBreak_RecordsDiagnosticNoTPCompletes(t *testing.T) {
	// GIVEN a flat trace with a large gap between samples 8 and 9
	frames := flatFrames(40)
	frames[9].TimeMS = frames[8].TimeMS + 1000
	for i := 10; i < len(frames); i++ {
		frames[i].TimeMS = frames[9].TimeMS + uint32(i-9)*50
	}
	sv, td := newRunningSlave(t, frames)

	// WHEN replayed
	replay(t, sv, td, len(frames))
	require.NoError(t, sv.Terminate())

	// THEN no TP completes (still all UNKNOWN) and a diagnostic was recorded
	ranks := sv.GetSoS()
	for _, r := range ranks {
		assert.Equal(t, byte(0), r)
	}
	assert.Greater(t, sv.Diagnostics().Len(), 0)
}

// TestSlave_Persistence_RoundTripsThroughFlash is spec §8 scenario 5: after
// terminate, a fresh Initialise over the same storage restores the same
// rank view without any new EventTrigger calls.
func TestSlave_Persistence_RoundTripsThroughFlash(t *testing.T) {
	// GIVEN a slave that ran a flat trace and terminated
	frames := flatFrames(30)
	td := driver.NewTraceDriver(frames)
	iface := td.Interface()

	sv := New()
	require.NoError(t, sv.SetupInterface(iface))
	require.Equal(t, InitOK, sv.Initialise(config.DefaultConfig()))
	replay(t, sv, td, len(frames))
	before := sv.GetSoS()
	require.NoError(t, sv.Terminate())

	// WHEN a new Slave is initialised against the same flash collaborator
	sv2 := New()
	require.NoError(t, sv2.SetupInterface(iface))
	require.Equal(t, InitOK, sv2.Initialise(config.DefaultConfig()))

	// THEN the restored rank view matches what was live at terminate
	assert.Equal(t, before, sv2.GetSoS())
}

func TestSlave_SetupInterface_RejectsNilCallback(t *testing.T) {
	// GIVEN an interface bundle missing its clock
	td := driver.NewTraceDriver([]driver.Frame{{}})
	iface := td.Interface()
	iface.Clock = nil

	sv := New()

	// WHEN SetupInterface is called
	err := sv.SetupInterface(iface)

	// THEN it is rejected
	assert.Error(t, err)
}

func TestSlave_SetupInterface_RejectsDoubleConfigure(t *testing.T) {
	// GIVEN an already-configured slave
	td := driver.NewTraceDriver([]driver.Frame{{}})
	sv := New()
	require.NoError(t, sv.SetupInterface(td.Interface()))

	// WHEN SetupInterface is called again
	err := sv.SetupInterface(td.Interface())

	// THEN it is rejected
	assert.Error(t, err)
}

func TestSlave_Initialise_IdentityFailure_ReturnsCode2(t *testing.T) {
	// GIVEN a driver whose hardware identity check fails
	td := driver.NewTraceDriver([]driver.Frame{{}})
	td.SetIdentityOK(false)
	sv := New()
	require.NoError(t, sv.SetupInterface(td.Interface()))

	// WHEN initialised
	res := sv.Initialise(config.DefaultConfig())

	// THEN it reports the identity-failure code
	assert.Equal(t, InitIdentityError, res)
}

func TestSlave_EventTrigger_RejectsOutOfBoundsSample(t *testing.T) {
	// GIVEN a running slave and a sample whose current exceeds the pack max
	cfg := config.DefaultConfig()
	frames := []driver.Frame{
		{TimeMS: 0, Current: 0, Voltages: flatVoltages()},
		{TimeMS: 50, Current: int32(cfg.MaxCurrentAmps*1e4) * 2, Voltages: flatVoltages()},
	}
	sv, td := newRunningSlave(t, frames)

	// WHEN both samples are fed through EventTrigger
	require.NoError(t, sv.EventTrigger())
	td.Advance()
	require.NoError(t, sv.EventTrigger())

	// THEN the second sample was rejected, not pushed (no panic, no crash);
	// the pipeline keeps running and still reports all UNKNOWN
	ranks := sv.GetSoS()
	for _, r := range ranks {
		assert.Equal(t, byte(0), r)
	}
}

func flatVoltages() [sample.SupersPerModule]uint16 {
	var v [sample.SupersPerModule]uint16
	for i := range v {
		v[i] = 40000
	}
	return v
}
