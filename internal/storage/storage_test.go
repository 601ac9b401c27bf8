package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_WriteThenRead_RoundTrips(t *testing.T) {
	// GIVEN an empty MemStore
	m := NewMemStore(16)

	// WHEN a chunk is written at a non-zero offset
	ok := m.FlashWrite(4, []byte{1, 2, 3, 4})
	require.True(t, ok)

	// THEN reading it back at the same offset recovers the bytes
	buf := make([]byte, 4)
	ok = m.FlashRead(4, buf)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestMemStore_Read_BeyondWrittenRange_Fails(t *testing.T) {
	// GIVEN a fresh MemStore with nothing grown past its initial size
	m := NewMemStore(4)

	// WHEN reading beyond its current extent
	buf := make([]byte, 8)
	ok := m.FlashRead(0, buf)

	// THEN it reports failure rather than returning garbage
	assert.False(t, ok)
}

func TestMemStore_Write_GrowsBacking(t *testing.T) {
	// GIVEN a small MemStore
	m := NewMemStore(2)

	// WHEN writing past its initial capacity
	ok := m.FlashWrite(10, []byte{9, 9})

	// THEN the write succeeds and is readable back
	require.True(t, ok)
	buf := make([]byte, 2)
	require.True(t, m.FlashRead(10, buf))
	assert.Equal(t, []byte{9, 9}, buf)
}

func TestBoltStore_WriteThenRead_RoundTripsAcrossReopen(t *testing.T) {
	// GIVEN a bbolt-backed store on disk
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	bs, err := OpenBoltStore(path)
	require.NoError(t, err)

	// WHEN a chunk is written and the file is closed
	require.True(t, bs.FlashWrite(0, []byte("sos-history")))
	require.NoError(t, bs.Close())

	// THEN reopening the same file recovers the bytes
	bs2, err := OpenBoltStore(path)
	require.NoError(t, err)
	defer bs2.Close()

	buf := make([]byte, len("sos-history"))
	require.True(t, bs2.FlashRead(0, buf))
	assert.Equal(t, "sos-history", string(buf))
}
