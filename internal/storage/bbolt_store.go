package storage

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/algolion/battery-sos/internal/driver"
)

var bucketName = []byte("flash")
var blobKey = []byte("blob")

// BoltStore is the bench/CLI-side non-volatile storage collaborator: a
// single growable byte blob, flash-addressed like MemStore, persisted to a
// local bbolt file so a `battery-sos run` replay can actually survive
// between process invocations (spec §1's "non-volatile-storage driver" is
// an external collaborator; this is a concrete, swappable implementation of
// it, not a production flash binding).
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path and
// ensures the flash bucket exists.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bbolt db %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init bbolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) readBlob(tx *bbolt.Tx) []byte {
	v := tx.Bucket(bucketName).Get(blobKey)
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// FlashRead reads len(buf) bytes starting at address from the persisted
// blob, reporting false if the blob is shorter than the requested range.
func (b *BoltStore) FlashRead(address uint32, buf []byte) bool {
	ok := true
	_ = b.db.View(func(tx *bbolt.Tx) error {
		blob := b.readBlob(tx)
		end := int(address) + len(buf)
		if end > len(blob) {
			ok = false
			return nil
		}
		copy(buf, blob[address:end])
		return nil
	})
	return ok
}

// FlashWrite splices buf into the persisted blob at address, growing it as
// needed, and commits the change before returning.
func (b *BoltStore) FlashWrite(address uint32, buf []byte) bool {
	if len(buf) > driver.MaxFlashChunk {
		return false
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		blob := b.readBlob(tx)
		end := int(address) + len(buf)
		if end > len(blob) {
			grown := make([]byte, end)
			copy(grown, blob)
			blob = grown
		}
		copy(blob[address:], buf)
		return tx.Bucket(bucketName).Put(blobKey, blob)
	})
	return err == nil
}

var (
	_ driver.FlashReader = (*BoltStore)(nil)
	_ driver.FlashWriter = (*BoltStore)(nil)
)
