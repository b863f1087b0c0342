package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Store is the Pebble database behind the ledger.
// It is only written through batches built by Tx.Commit.
type Store struct {
	db *pebble.DB
}

// OpenStore opens (or creates) a Pebble database at dir
func OpenStore(dir string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20),
		MemTableSize:             32 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenMemStore opens a Pebble database on an in-memory filesystem
func OpenMemStore() (*Store, error) {
	db, err := pebble.Open("ledger", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// scan calls fn with every value stored under prefix, in key order
func (s *Store) scan(prefix string, fn func(value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator for %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
	}
	return iter.Error()
}

// batch collects writes that land atomically on commit
type batch struct {
	b *pebble.Batch
}

func (s *Store) newBatch() *batch {
	return &batch{b: s.db.NewBatch()}
}

func (b *batch) setJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return b.b.Set(key, data, nil)
}

func (b *batch) commit() error {
	return b.b.Commit(pebble.Sync)
}

func (b *batch) close() error {
	return b.b.Close()
}
