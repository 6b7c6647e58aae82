// Package coordinator implements the bucket-level side of ordered listing:
// fanning a page request out to every shard of a bucket index and merging
// their ordered answers into one page in global byte order.
//
// # Overview
//
// Keys are spread over shards by hash, so every shard holds an ordered but
// unrelated slice of the keyspace. A page of the first N keys after a marker
// can only be assembled by asking every shard for its own next keys and
// merging. Asking each shard for N keys is wasteful; asking for N/S keys
// (S shards) comes up short whenever the hash is uneven. The Lister asks for
// a quota slightly above the expected maximum load of a shard and repeats
// rounds until the page is at least half full.
//
// # Architecture
//
//	          ListPage(marker, delimiter, maxKeys)
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────┐
//	│                   LISTER                     │
//	│                                              │
//	│  round k:                                    │
//	│    quota = ShardQuota(toRead+1-k, S)         │
//	│                                              │
//	│    ┌────────┐ ┌────────┐       ┌────────┐    │
//	│    │shard 0 │ │shard 1 │  ...  │shard S │    │
//	│    │ Query  │ │ Query  │       │ Query  │    │
//	│    └───┬────┘ └───┬────┘       └───┬────┘    │
//	│        └──────────┼────────────────┘         │
//	│                   ▼  barrier                 │
//	│            k-way merge + dedupe              │
//	│                   │                          │
//	│     page ≥ half full or k = 8? ──no──► next  │
//	│                   │ yes                      │
//	└───────────────────┼──────────────────────────┘
//	                    ▼
//	          Page{Items, IsTruncated, Telemetry}
//
// # Merge Rules
//
// The merge repeatedly takes the smallest head among the shard buffers.
// It stops early when:
//   - the page holds MaxKeys items
//   - a shard that reported truncation has an empty buffer, since that
//     shard may still hold keys smaller than the other heads
//   - every buffer is drained
//
// With a delimiter, an item that falls in the group of the last emitted
// common prefix is dropped, so each prefix appears once per page even when
// several shards report it. The remembered prefix carries over between
// rounds of the same call.
//
// # Truncation
//
// IsTruncated is the OR of the shard flags from the last round. When the page
// fills up mid-merge the flag is reported as computed for the round, so a
// full page may report false while buffered items remain. Callers walking a
// bucket should treat a full page as possibly truncated; Paginator.ListAll
// and the HTTP server both do.
//
// # Paginator
//
// Paginator drives a Lister the way a client would:
//   - Simulate restarts from an empty marker with a shrinking remaining
//     quota and sums the telemetry of every call
//   - ListAll follows the last item of each page as the next marker and
//     returns the whole listing
//
// # Thread Safety
//
// Lister and Paginator hold no per-call state. Concurrent ListPage calls are
// safe as long as the shards are; shard queries of one round run in
// parallel on an errgroup and the call returns the first error.
//
// # See Also
//
//   - internal/shard: the per-shard ranged query
//   - internal/listing: cursors, delimiters, quotas and telemetry
//   - internal/server: the HTTP list endpoint
package coordinator
