package master

import (
	"testing"

	"github.com/algolion/battery-sos/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningMaster(t *testing.T) *Master {
	t.Helper()
	mem := storage.NewMemStore(TableSize)
	m := New()
	require.NoError(t, m.SetupInterface(mem, mem))
	require.NoError(t, m.Initialise())
	return m
}

func TestMaster_OnBusReport_WritesIntoCorrectSlot(t *testing.T) {
	// GIVEN a running Master and two chunks for module 3 (spec §8 scenario 6)
	m := newRunningMaster(t)

	r0 := [6]byte{1, 2, 3, 0, 1, 2}
	r1 := [6]byte{3, 0, 1, 2, 3, 0}

	// WHEN both chunks arrive
	require.NoError(t, m.OnBusReport(BusReport{ModuleIndex: 3, ChunkIndex: 0, Ranks: r0}))
	require.NoError(t, m.OnBusReport(BusReport{ModuleIndex: 3, ChunkIndex: 1, Ranks: r1}))

	// THEN masterGetSoS()[3*12+i] == r_i for i=0..11
	table := m.GetSoS()
	for i := 0; i < 6; i++ {
		assert.Equal(t, r0[i], table[3*RanksPerModule+i])
		assert.Equal(t, r1[i], table[3*RanksPerModule+6+i])
	}
}

func TestMaster_OnBusReport_OutOfRangeModule_IsIgnoredNotFatal(t *testing.T) {
	// GIVEN a running Master
	m := newRunningMaster(t)

	// WHEN a report names a module index beyond Modules
	err := m.OnBusReport(BusReport{ModuleIndex: Modules + 1, ChunkIndex: 0})

	// THEN it is absorbed, not returned as an error (spec §4.H: no retries,
	// non-fatal diagnostics)
	assert.NoError(t, err)
}

func TestMaster_GetSoS_StartsAllZero(t *testing.T) {
	// GIVEN a freshly initialised Master with empty storage
	m := newRunningMaster(t)

	// THEN every byte starts at UNKNOWN (0)
	table := m.GetSoS()
	for _, b := range table {
		assert.Equal(t, byte(0), b)
	}
}

func TestMaster_Terminate_PersistsTableAcrossReinitialise(t *testing.T) {
	// GIVEN a Master that has recorded one module's ranks
	mem := storage.NewMemStore(TableSize)
	m := New()
	require.NoError(t, m.SetupInterface(mem, mem))
	require.NoError(t, m.Initialise())
	require.NoError(t, m.OnBusReport(BusReport{ModuleIndex: 0, ChunkIndex: 0, Ranks: [6]byte{1, 1, 1, 1, 1, 1}}))

	// WHEN terminated and a new Master is initialised from the same storage
	require.NoError(t, m.Terminate())

	m2 := New()
	require.NoError(t, m2.SetupInterface(mem, mem))
	require.NoError(t, m2.Initialise())

	// THEN the rank table is restored identically
	assert.Equal(t, m.GetSoS(), m2.GetSoS())
}

func TestMaster_DriverAction_IsNoOp(t *testing.T) {
	// GIVEN a running Master
	m := newRunningMaster(t)

	// THEN DriverAction never panics and has no observable effect
	m.DriverAction(5)
	assert.Equal(t, [TableSize]byte{}, m.GetSoS())
}
