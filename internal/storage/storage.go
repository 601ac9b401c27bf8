// Package storage provides concrete implementations of the non-volatile
// storage collaborator the spec treats as an external dependency (spec §1,
// §6: flashRead/flashWrite). Production firmware supplies its own
// flash-backed driver; this package gives the CLI replay tool something
// real to persist History between runs, grounded in
// other_examples/markus-lassfolk-autonomy's use of go.etcd.io/bbolt for
// local embedded persistence.
package storage

import "github.com/algolion/battery-sos/internal/driver"

// MemStore is an in-memory FlashReader/FlashWriter test double: a single
// growable byte slice addressed like flash. Used by unit tests that need a
// Storage collaborator without a real file.
type MemStore struct {
	buf []byte
}

// NewMemStore returns a MemStore with an initial capacity of size bytes.
func NewMemStore(size int) *MemStore {
	return &MemStore{buf: make([]byte, size)}
}

func (m *MemStore) grow(end int) {
	if end <= len(m.buf) {
		return
	}
	grown := make([]byte, end)
	copy(grown, m.buf)
	m.buf = grown
}

func (m *MemStore) FlashRead(address uint32, buf []byte) bool {
	end := int(address) + len(buf)
	if end > len(m.buf) {
		return false
	}
	copy(buf, m.buf[address:end])
	return true
}

func (m *MemStore) FlashWrite(address uint32, buf []byte) bool {
	if len(buf) > driver.MaxFlashChunk {
		return false
	}
	m.grow(int(address) + len(buf))
	copy(m.buf[address:], buf)
	return true
}

var (
	_ driver.FlashReader = (*MemStore)(nil)
	_ driver.FlashWriter = (*MemStore)(nil)
)
