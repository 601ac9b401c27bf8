package sos

import (
	"testing"

	"github.com/algolion/battery-sos/config"
	"github.com/algolion/battery-sos/internal/storage"
	"github.com/algolion/battery-sos/internal/tp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankSuperCell_NotOK_IsUnknown(t *testing.T) {
	// GIVEN a super-cell the characteriser could not fit
	cfg := config.DefaultConfig()
	res := tp.SuperResult{OK: false}

	// THEN it ranks Unknown regardless of Params
	assert.Equal(t, Unknown, RankSuperCell(res, cfg))
}

func TestRankSuperCell_WithinBand_IsNormal(t *testing.T) {
	// GIVEN parameters sitting exactly on the configured thresholds
	cfg := config.DefaultConfig()
	res := tp.SuperResult{OK: true, Params: cfg.SoSThreshold}

	// THEN every parameter falls in [tau/2, 2*tau], so the verdict is Normal
	assert.Equal(t, Normal, RankSuperCell(res, cfg))
}

func TestRankSuperCell_FarOutOfBand_IsCritical(t *testing.T) {
	// GIVEN one parameter 100x its threshold
	cfg := config.DefaultConfig()
	var res tp.SuperResult
	res.OK = true
	res.Params = cfg.SoSThreshold
	res.Params[0] = cfg.SoSThreshold[0] * 100

	// THEN the verdict saturates at Critical
	assert.Equal(t, Critical, RankSuperCell(res, cfg))
}

func TestRankSuperCell_MildlyOutOfBand_IsAttention(t *testing.T) {
	// GIVEN one parameter 3x its threshold: outside [tau/2,2tau] but inside
	// [tau/4,4tau] (spec §9 open-question resolution)
	cfg := config.DefaultConfig()
	var res tp.SuperResult
	res.OK = true
	res.Params = cfg.SoSThreshold
	res.Params[0] = cfg.SoSThreshold[0] * 3

	// THEN the verdict is Attention, not Critical
	assert.Equal(t, Attention, RankSuperCell(res, cfg))
}

func TestRankSuperCell_MaxAcrossParameters(t *testing.T) {
	// GIVEN four parameters in-band and one far out of band
	cfg := config.DefaultConfig()
	var res tp.SuperResult
	res.OK = true
	res.Params = cfg.SoSThreshold
	res.Params[2] = cfg.SoSThreshold[2] * 100

	// THEN the overall rank is the worst across parameters
	assert.Equal(t, Critical, RankSuperCell(res, cfg))
}

func TestHistory_Add_FirstEntriesBecomeBaselines(t *testing.T) {
	// GIVEN an empty history
	var h History

	// WHEN HistFirst+2 records are added
	for i := 0; i < HistFirst+2; i++ {
		h.Add(Record{StartTimeUS: int64(i)})
	}

	// THEN exactly HistFirst are baselines and the rest are FIFO entries
	assert.Len(t, h.Baselines, HistFirst)
	assert.Len(t, h.Recent, 2)
	for _, b := range h.Baselines {
		assert.True(t, b.Baseline)
	}
}

func TestHistory_Add_FIFOEvictsOldest(t *testing.T) {
	// GIVEN a history already holding the maximum number of entries
	var h History
	for i := 0; i < HistLast+5; i++ {
		h.Add(Record{StartTimeUS: int64(i)})
	}

	// THEN Recent never exceeds HistLast-HistFirst and holds the newest ones
	assert.Len(t, h.Recent, HistLast-HistFirst)
	assert.Equal(t, int64(HistLast+4), h.Recent[len(h.Recent)-1].StartTimeUS)
}

func TestHistory_CommitThenLoad_RoundTripsRecords(t *testing.T) {
	// GIVEN a history with a baseline and a FIFO record holding real
	// per-super-cell parameters
	var h History
	r0 := Record{StartTimeUS: 1000, NTP: 12}
	r0.OK[0] = true
	r0.Params[0] = [5]float64{0.01, 0.02, 1.0, 0.5, 0.25}
	r0.Shapes[0] = int32(tp.ShapeOCToDrop)
	h.Add(r0)

	r1 := Record{StartTimeUS: 2000, NTP: 15}
	r1.OK[1] = true
	r1.Params[1] = [5]float64{0.03, 0.04, 2.0, 1.5, 0.75}
	h.Add(r1)

	mem := storage.NewMemStore(8192)

	// WHEN committed and reloaded from the same flash collaborator
	require.NoError(t, h.Commit(mem, nil))
	loaded, err := Load(mem, nil)
	require.NoError(t, err)

	// THEN the baseline and FIFO records round-trip exactly
	require.Len(t, loaded.Baselines, 1)
	require.Len(t, loaded.Recent, 1)
	assert.Equal(t, r0.StartTimeUS, loaded.Baselines[0].StartTimeUS)
	assert.Equal(t, r0.Params[0], loaded.Baselines[0].Params[0])
	assert.Equal(t, r0.Shapes[0], loaded.Baselines[0].Shapes[0])
	assert.True(t, loaded.Baselines[0].OK[0])
	assert.Equal(t, r1.StartTimeUS, loaded.Recent[0].StartTimeUS)
	assert.Equal(t, r1.Params[1], loaded.Recent[0].Params[1])
}

func TestLoad_UninitialisedStorage_ReturnsEmptyHistory(t *testing.T) {
	// GIVEN a fresh flash collaborator with no magic tag written
	mem := storage.NewMemStore(64)

	// WHEN loaded
	h, err := Load(mem, nil)

	// THEN it returns an empty history, not an error
	require.NoError(t, err)
	assert.Empty(t, h.Baselines)
	assert.Empty(t, h.Recent)
}
