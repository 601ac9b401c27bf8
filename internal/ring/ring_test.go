package ring

import (
	"testing"

	"github.com/algolion/battery-sos/internal/sample"
	"github.com/stretchr/testify/assert"
)

func TestRing_Push_AdvancesCountAndWritesSlot(t *testing.T) {
	// GIVEN an empty ring
	var r Ring

	// WHEN one sample is pushed
	r.Push(sample.Raw{TimeUS: 100})

	// THEN N reflects one push and Last returns it
	assert.Equal(t, int64(1), r.N())
	assert.Equal(t, int64(100), r.Last().TimeUS)
}

func TestRing_Ready_FalseUntilFull(t *testing.T) {
	// GIVEN a ring filled with fewer than Size samples
	var r Ring
	for i := 0; i < Size-1; i++ {
		r.Push(sample.Raw{TimeUS: int64(i)})
	}

	// THEN it is not yet ready
	assert.False(t, r.Ready())

	// WHEN one more sample fills it
	r.Push(sample.Raw{TimeUS: int64(Size)})

	// THEN it reports ready
	assert.True(t, r.Ready())
}

func TestRing_At_ReturnsAnchoredInspectionPoint(t *testing.T) {
	// GIVEN a full ring where sample i carries timestamp i
	var r Ring
	for i := 0; i < Size+StartOffset+3; i++ {
		r.Push(sample.Raw{TimeUS: int64(i)})
	}

	// WHEN reading the inspection point at offset 0
	got := r.At(0)

	// THEN it is StartOffset samples behind the head
	wantTime := r.N() - StartOffset
	assert.Equal(t, wantTime, got.TimeUS)
}

func TestRing_At_NeverReadsBeyondHead(t *testing.T) {
	// GIVEN a ring with only StartOffset+1 samples pushed
	var r Ring
	for i := 0; i <= StartOffset; i++ {
		r.Push(sample.Raw{TimeUS: int64(i)})
	}

	// WHEN the inspection point is read
	// THEN n - StartOffset >= 0 holds (spec §8 invariant)
	assert.GreaterOrEqual(t, r.N()-StartOffset, int64(0))
}
