// Package shard implements one hash partition of a bucket index and the
// ranged query each partition serves to the listing coordinator.
//
// # Overview
//
// A shard owns the keys whose hash maps to its ID. It stores them in an
// ordered storage.Store and answers listing queries of the form "give me up to
// N entries strictly after this cursor, collapsing on this delimiter". In a
// deployed system this query is the RPC a storage node exposes; here it is a
// method call.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│               SHARD                 │
//	├─────────────────────────────────────┤
//	│  Get / Put / Delete (object API)    │
//	├─────────────────────────────────────┤
//	│  Query(cursor, delimiter, quota)    │
//	│    ├─ scan attempt 1: quota rows    │
//	│    ├─ scan attempt 2: quota-1 rows  │
//	│    └─ ... up to 8 attempts          │
//	├─────────────────────────────────────┤
//	│  storage.Store (ordered B-tree)     │
//	├─────────────────────────────────────┤
//	│  OperationStats (atomic counters)   │
//	└─────────────────────────────────────┘
//
// # Core Components
//
// Shard: the partition
//   - ID: position in the bucket, also the placement target
//   - Store: the ordered index and object bodies
//   - Stats: operation counters updated atomically
//
// ShardInfo: a point-in-time report
//   - KeyCount and ByteSize from the store
//   - LastKey, the greatest key, empty for an empty shard
//   - Ops, the operation counters
//
// # Key Space Partitioning
//
// Shards do not own ranges. The bucket hashes each key and places it on
// hash mod S, so every shard holds an ordered but unrelated sample of the
// whole keyspace:
//
//	keys:    a  b  c  d  e  f  g  h
//	shard 0: a        d        g
//	shard 1:    b           f
//	shard 2:       c     e        h
//
// A listing page therefore needs an answer from every shard, and the
// coordinator merges them. A shard never checks ownership; the bucket routes
// each write to the right shard.
//
// # Operations
//
// Object operations:
//   - Get(key) - Payload of key, wrapping storage.ErrKeyNotFound when absent
//   - Put(key, value) - Index key with an optional payload
//   - Delete(key) - Remove key; absent keys succeed
//   - ListKeys() - Every key, for verification
//
// Listing:
//   - Query(ctx, q) - Up to q.Quota items after q.Cursor
//
// Monitoring:
//   - GetStats() - Counters and store size
//   - Info() - The report served on /debug/shards
//
// # Query Semantics
//
// Each attempt scans raw rows past the cursor. With a delimiter, a row that
// contains it is reported as its common prefix, once per run of rows sharing
// that prefix; rows without it are reported verbatim and reset the
// remembered prefix. Output stops as soon as the quota is met, even in the
// middle of a batch.
//
// Collapsed rows cost scan budget but produce nothing, which is why the
// query retries: a shard holding one huge directory would otherwise return a
// single prefix per call. After an attempt the cursor jumps past the whole
// group of the remembered prefix, so the next attempt starts at the next
// group. Attempt k asks for quota+1-k rows, never fewer than one.
//
// Example with quota 3 and delimiter "/":
//
//	rows:     a/1 a/2 a/3 b c/1 c/2 d
//	attempt 1 scans a/1 a/2 a/3      -> a/
//	attempt 2 scans b c/1            -> b c/   quota met
//	result:   [a/ b c/], truncated
//
// # Truncation
//
// The result's IsTruncated flag reports whether the shard may hold more
// items after the last one it returned:
//   - the final scan stopped short of the shard's greatest key, or
//   - the quota filled in the middle of a batch and the rows left in the
//     batch fall outside the remembered prefix group
//
// The second clause matters when the batch ends on the greatest key: the
// rows after the quota are still unreported, and a false flag would let the
// coordinator drop them. An empty scan ends the query with IsTruncated false.
//
// # Concurrency Model
//
// Shard itself holds no lock. The store serializes access to the index and
// the counters use sync/atomic, so Query may run concurrently with writes and
// with other queries. A query may observe writes made between its attempts;
// the cursor only moves forward, so an item is never reported twice.
//
// Query checks its context before every attempt and returns the wrapped
// context error when the listing call was canceled.
//
// # Telemetry
//
// Rows read and scans executed are returned in the result's Telemetry. The
// coordinator sums them into the page telemetry that the HTTP server exports
// as Prometheus counters. The shard's own OperationStats count calls for
// monitoring and are not part of the listing contract.
//
// # Performance Characteristics
//
//   - Query reads at most MaxAttempts batches of at most quota rows
//   - Skipping a prefix group costs one B-tree seek, not one step per key
//   - Last is read once per query to decide truncation
//   - Get, Put and Delete are O(log n) in the shard's key count
//
// # Monitoring and Metrics
//
// Info feeds /debug/shards and the shard monitor in internal/server, which
// samples every shard on an interval, publishes per-shard key counts as a
// gauge and logs shards whose key count strays from the mean.
//
// # Usage Example
//
//	s := shard.NewShard(0)
//	_ = s.Put("photos/2024/a.jpg", []byte("jpeg"))
//	_ = s.Put("photos/2024/b.jpg", nil)
//	_ = s.Put("readme.txt", nil)
//
//	res, err := s.Query(ctx, listing.Query{
//	    Delimiter: listing.NewDelimiter('/'),
//	    Quota:     10,
//	})
//	// res.Items == []string{"photos/", "readme.txt"}
//	// res.IsTruncated == false
//
//	body, err := s.Get("photos/2024/a.jpg") // "jpeg"
//
// # Testing
//
// The package tests cover:
//   - Query tables over cursors, delimiters and quotas
//   - Truncation when the quota fills before the greatest key is reported
//   - Retries across large collapsed groups
//   - Cancellation between attempts
//   - Operation counters for Get, Put, Delete and Query
//
// # Limitations
//
//   - Query serves a single-byte delimiter only
//   - Prefix filtering is not supported; callers list from a marker
//   - Shards are in-process; there is no RPC transport
//
// # See Also
//
//   - internal/storage: the ordered index
//   - internal/coordinator: fan-out and merge across shards
//   - internal/listing: cursors, delimiters, quotas and telemetry
package shard
