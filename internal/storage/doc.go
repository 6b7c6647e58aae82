// Package storage provides the ordered key index that backs every shard of a
// bucket, together with the optional object bodies stored alongside the keys.
//
// # Overview
//
// A shard's index is a sorted, duplicate-free set of object keys. The listing
// algorithm only reads it: it seeks to a cursor, pulls a bounded run of keys
// in ascending byte order, and asks for the greatest key to decide whether a
// scan reached the end. Writers insert and remove keys through the bucket,
// either at population time or through the object API of the HTTP server.
//
// # Architecture
//
// The package sits below the shard query engine:
//
//	┌─────────────────────────────────────┐
//	│   Bucket (placement, object API)    │
//	└─────────────────────────────────────┘
//	                 │  Put / Get / Delete
//	                 ▼
//	┌─────────────────────────────────────┐
//	│         Shard (query engine)        │
//	└─────────────────────────────────────┘
//	                 │  Scan(cursor, n) / Last()
//	                 ▼
//	┌─────────────────────────────────────┐
//	│          Store interface            │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│  MemoryStore: B-tree keyed by bytes │
//	└─────────────────────────────────────┘
//
// # Core Interface
//
// Store: the ordered index with payloads
//   - Get(key) - Retrieve a copy of the payload stored with key
//   - Put(key, value) - Insert key or replace its payload
//   - Delete(key) - Remove key; absent keys are not an error
//   - List() - Every key in ascending byte order
//   - Scan(cursor, limit) - Up to limit keys the cursor admits, ascending
//   - Last() - The greatest key, used for truncation decisions
//   - Stats() - Key count and payload bytes
//
// List exists for verification and for the debug surfaces. Listing pages are
// always assembled from Scan, which touches at most limit keys beyond the
// ones the cursor skips.
//
// # Implementations
//
// MemoryStore: in-memory B-tree (github.com/google/btree) under a sync.RWMutex
//   - Ordered iteration from any seek point in O(log n + k)
//   - Max in O(log n), so Last is cheap on every query attempt
//   - No persistence; the index is rebuilt by population on start
//   - Safe for concurrent use
//
// # Ordering
//
// Keys compare as raw bytes, the same order Go uses for strings. The listing
// protocol depends on stores and coordinators agreeing on this order, so
// implementations must not apply collation or normalization. Keys holding
// bytes above 0x7F sort after every ASCII key, whatever their encoding.
//
// Scan takes a listing.Cursor and returns keys the cursor admits:
//
//	listing.After("a/1")        keys strictly greater than "a/1"
//	listing.AfterPrefix("a/")   keys outside the group "a/", seeking to "a0"
//	listing.Cursor{}            every key
//
// For the prefix-group form the store seeks to the prefix successor instead
// of walking every key in the group, so skipping a directory of a million
// keys costs one seek. When the prefix has no successor (every byte is 0xFF)
// the cursor admits nothing and Scan returns no keys.
//
// # Payloads
//
// A key may carry a payload, the body an object PUT stored. Keys created by
// population or by an empty PUT carry nil. Put and Get both copy, so callers
// may reuse their buffers and cannot mutate the stored bytes through a
// returned slice. Stats.Bytes counts payload bytes only; key bytes are not
// included.
//
// # Concurrency and Thread Safety
//
// MemoryStore guards its tree with a sync.RWMutex.
//
// Locking Strategy:
//   - Get, List, Scan, Last and Stats take the read lock
//   - Put and Delete take the write lock
//   - A Scan holds the read lock for one bounded batch only
//
// Consistency Guarantees:
//   - Each Scan sees a consistent snapshot of the tree
//   - Two Scans of one query may observe writes made between them; the
//     listing cursor only moves forward, so a key is never reported twice
//   - Stats is consistent with the tree at the moment it was taken
//
// Concurrent shard queries of one listing round therefore proceed in
// parallel, while writers wait for the batch in flight.
//
// # Error Handling
//
// The package defines sentinel errors for the conditions callers branch on:
//
//	ErrKeyNotFound   Get of an absent key
//	ErrInvalidKey    Put of the empty key, which no cursor can list
//
// Errors are wrapped with github.com/pkg/errors so the key travels with them;
// match with errors.Is:
//
//	body, err := store.Get("photos/a.jpg")
//	if errors.Is(err, storage.ErrKeyNotFound) {
//	    // answer NoSuchKey
//	}
//
// # Usage Examples
//
// Basic operations:
//
//	store := storage.NewMemoryStore()
//
//	_ = store.Put("photos/2024/a.jpg", []byte("jpeg"))
//	_ = store.Put("photos/2024/b.jpg", nil)
//	_ = store.Put("readme.txt", nil)
//
//	body, _ := store.Get("photos/2024/a.jpg") // "jpeg"
//	last, _ := store.Last()                    // "readme.txt"
//
// Resuming a scan after a whole directory:
//
//	keys := store.Scan(listing.AfterPrefix("photos/"), 10)
//	// keys == []string{"readme.txt"}
//
// Bounded reads:
//
//	keys = store.Scan(listing.After("photos/2024/a.jpg"), 1)
//	// keys == []string{"photos/2024/b.jpg"}
//
// # Testing
//
// The package tests cover:
//   - Get, Put and Delete with payload copies and byte accounting
//   - Scan with every cursor form, limits and the empty store
//   - Last on empty and populated stores
//   - Concurrent writers and scanners under the race detector
//
// # Metrics and Monitoring
//
// Stats feeds the shard's Info, which the HTTP server publishes on
// /debug/shards and the shard monitor samples into the
// shardlist_shard_keys gauge. Key counts drifting apart across shards are
// reported as skew.
//
// # Limitations
//
//   - The index lives in memory and is lost on restart
//   - Scan returns keys only; listings never read payloads
//   - There is no compaction of replaced payloads beyond the Go heap
//
// # See Also
//
//   - internal/listing: cursors and delimiters
//   - internal/shard: the query engine over a Store
//   - internal/bucket: placement of keys onto shards
package storage
