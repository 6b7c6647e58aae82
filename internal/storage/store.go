package storage

import (
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/dreamware/shardlist/internal/listing"
)

// ErrKeyNotFound is returned by Get for an absent key.
var ErrKeyNotFound = errors.New("key not found")

// ErrInvalidKey is returned for keys the index cannot hold, such as "".
var ErrInvalidKey = errors.New("invalid key")

// btreeDegree is the branching factor of the ordered index
const btreeDegree = 32

// Store is a shard's index: keys in byte order with optional payloads.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns a copy of the payload, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Put inserts key or replaces its payload.
	Put(key string, value []byte) error
	// Delete drops key. Dropping an absent key is not an error.
	Delete(key string) error
	// List returns every key in ascending byte order.
	List() []string
	// Scan returns up to limit keys admitted by after, in ascending order.
	Scan(after listing.Cursor, limit int) []string
	// Last returns the greatest key, false when the store is empty.
	Last() (string, bool)
	Stats() StoreStats
}

// StoreStats is a point-in-time size of a store.
type StoreStats struct {
	Keys  int // indexed keys
	Bytes int // payload bytes, keys excluded
}

type entry struct {
	key   string
	value []byte
}

func entryLess(a, b entry) bool {
	return a.key < b.key
}

// MemoryStore is a Store on an in-memory B-tree. Readers share an RWMutex;
// a Scan sees a consistent snapshot of the tree.
type MemoryStore struct {
	mu    sync.RWMutex
	tree  *btree.BTreeG[entry]
	bytes int // sum of payload lengths
}

// NewMemoryStore returns an empty index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tree: btree.NewG[entry](btreeDegree, entryLess),
	}
}

// Get retrieves the payload stored with key
// Returns a copy of the payload to prevent external modification
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, found := m.tree.Get(entry{key: key})
	if !found {
		return nil, errors.Wrapf(ErrKeyNotFound, "get %q", key)
	}
	return slices.Clone(e.value), nil
}

// Put stores key with the given payload
// Makes a copy of the payload; keys indexed without a body carry nil
func (m *MemoryStore) Put(key string, value []byte) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "empty key")
	}
	stored := slices.Clone(value)

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, replaced := m.tree.ReplaceOrInsert(entry{key: key, value: stored}); replaced {
		m.bytes -= len(old.value)
	}
	m.bytes += len(stored)

	return nil
}

// Delete removes a key and its payload
// No error if the key doesn't exist (idempotent)
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, removed := m.tree.Delete(entry{key: key}); removed {
		m.bytes -= len(old.value)
	}
	return nil
}

// List returns all keys in ascending byte order
// The slice is freshly allocated on every call
func (m *MemoryStore) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, m.tree.Len())
	m.tree.Ascend(func(e entry) bool {
		keys = append(keys, e.key)
		return true
	})
	return keys
}

// Scan seeks to the cursor's first candidate and walks forward, skipping keys
// the cursor does not admit.
func (m *MemoryStore) Scan(after listing.Cursor, limit int) []string {
	if limit <= 0 {
		return nil
	}
	from, ok := after.Seek()
	if !ok {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, min(limit, m.tree.Len()))
	m.tree.AscendGreaterOrEqual(entry{key: from}, func(e entry) bool {
		if !after.Admits(e.key) {
			return true
		}
		keys = append(keys, e.key)
		return len(keys) < limit
	})
	return keys
}

// Last returns the greatest key in the store
// Reports false when the store is empty
func (m *MemoryStore) Last() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.tree.Max()
	return e.key, ok
}

// Stats returns the key count and payload size
func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return StoreStats{
		Keys:  m.tree.Len(),
		Bytes: m.bytes,
	}
}
