// Package listing defines the data model shared by every layer of the ordered
// bucket listing protocol: cursors, delimiters, per-shard and aggregate
// results, the per-shard request sizing formula and the explicit telemetry
// that each operation hands back to its caller.
//
// # Overview
//
// A bucket's keys are hash-partitioned across independent shards. Producing
// one globally ordered page therefore takes two levels:
//
//	┌──────────────────────────────────────────┐
//	│          Lister (coordinator)             │
//	│  size request → fan out → k-way merge     │
//	└──────────────────────────────────────────┘
//	        │            │             │
//	        ▼            ▼             ▼
//	┌────────────┐ ┌────────────┐ ┌────────────┐
//	│  Shard 0   │ │  Shard 1   │ │  Shard N   │
//	│ ranged scan│ │ ranged scan│ │ ranged scan│
//	└────────────┘ └────────────┘ └────────────┘
//
// This package owns the vocabulary both levels speak. It does no I/O.
//
// # Cursors
//
// A Cursor is an exclusive lower bound with two forms:
//
//	After("dir01/file000042")   resume strictly after one key
//	AfterPrefix("dir01/")       resume after every key in the "dir01/" group
//
// Cursor.Admits is the single ordering function used to decide whether a key
// lies beyond a cursor. Stores seek with Cursor.Seek, which yields the
// smallest candidate key, computed as a byte-wise prefix successor for the
// group form. No sentinel characters are appended to keys.
//
// # Delimiters
//
// With a delimiter configured, a key containing it is reported as its common
// prefix: the substring through the first delimiter occurrence, inclusive.
// Keys without the delimiter are reported verbatim.
//
// # Request sizing
//
// Estimate implements the balls-into-bins bound
//
//	1 + n/s + sqrt(2·n·ln(s)/s)
//
// which, for n keys hashed uniformly into s shards, bounds the maximum
// per-shard load with high probability. Requesting that many entries from
// every shard makes it very likely that one round yields n entries overall.
//
// # Telemetry
//
// Counters (shard calls, scans, rows, list calls, items) travel inside results
// and are summed explicitly with Telemetry.Add. Nothing is counted in global
// state.
package listing
