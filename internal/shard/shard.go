package shard

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/dreamware/shardlist/internal/listing"
	"github.com/dreamware/shardlist/internal/storage"
)

// Shard is one hash partition of a bucket index: the keys placed on it by
// the bucket's hash, kept in byte order.
type Shard struct {
	ID    int
	Store storage.Store
	Stats *ShardStats // updated atomically
}

// ShardStats pairs operation counters with the index size.
type ShardStats struct {
	Ops     OperationStats
	Storage storage.StoreStats
}

// OperationStats counts calls per operation since the shard was created.
type OperationStats struct {
	Gets    uint64 `json:"gets"`
	Puts    uint64 `json:"puts"`
	Deletes uint64 `json:"deletes"`
	Lists   uint64 `json:"lists"` // Query calls
}

// ShardInfo is what /debug/shards and the shard monitor report per shard.
type ShardInfo struct {
	ID       int            `json:"id"`
	KeyCount int            `json:"key_count"`
	ByteSize int            `json:"byte_size"`
	LastKey  string         `json:"last_key"` // empty when the shard is empty
	Ops      OperationStats `json:"operations"`
}

// NewShard returns an empty shard backed by a MemoryStore.
func NewShard(id int) *Shard {
	return &Shard{
		ID:    id,
		Store: storage.NewMemoryStore(),
		Stats: &ShardStats{},
	}
}

// Get returns the payload stored with key
// Increments the get counter; a missing key wraps storage.ErrKeyNotFound
func (s *Shard) Get(key string) ([]byte, error) {
	atomic.AddUint64(&s.Stats.Ops.Gets, 1)
	return s.Store.Get(key)
}

// Put indexes key on this shard with an optional payload
// Increments the put counter
func (s *Shard) Put(key string, value []byte) error {
	atomic.AddUint64(&s.Stats.Ops.Puts, 1)
	return s.Store.Put(key, value)
}

// Delete removes key from the shard
// Increments the delete counter; deleting an absent key succeeds
func (s *Shard) Delete(key string) error {
	atomic.AddUint64(&s.Stats.Ops.Deletes, 1)
	return s.Store.Delete(key)
}

// ListKeys returns every key on the shard in byte order.
func (s *Shard) ListKeys() []string {
	return s.Store.List()
}

// Query scans the shard from q.Cursor and returns at most q.Quota items,
// collapsing keys into common prefixes when q.Delimiter is enabled.
//
// The scan is retried up to listing.MaxAttempts times because collapsed rows
// consume scan budget without producing output. Attempt k requests
// q.Quota+1-k raw rows, never fewer than one. Between attempts the cursor
// skips the whole group of the last emitted prefix, or else moves past the
// last raw row.
//
// IsTruncated is true when the last scan ended before the shard's greatest
// key, or when the quota was met with unprocessed rows in the batch that
// would have produced further items. An empty scan ends the query with
// IsTruncated false.
//
// This departs from the simpler rule "truncated iff the last scanned row is
// not the shard's greatest key". When the quota fills in the middle of a
// batch whose last row is the greatest key, that rule reports false and the
// merge would treat the shard as exhausted, dropping the rows after the
// quota from every later page.
func (s *Shard) Query(ctx context.Context, q listing.Query) (listing.ShardResult, error) {
	atomic.AddUint64(&s.Stats.Ops.Lists, 1)

	var res listing.ShardResult
	quota := max(q.Quota, 1)
	last, ok := s.Store.Last()
	if !ok {
		return res, nil
	}

	items := make([]string, 0, quota)
	cursor := q.Cursor
	prev, havePrev := "", false

scan:
	for attempt := 1; attempt <= listing.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return listing.ShardResult{}, errors.Wrapf(err, "shard %d: attempt %d", s.ID, attempt)
		}

		rows := s.Store.Scan(cursor, max(quota+1-attempt, 1))
		if len(rows) == 0 {
			res.IsTruncated = false
			break
		}
		lastRow := rows[len(rows)-1]
		res.IsTruncated = lastRow != last
		res.Telemetry.RowsRead += len(rows)
		res.Telemetry.Queries++

		for i, row := range rows {
			if prefix, ok := q.Delimiter.CommonPrefix(row); ok {
				if havePrev && strings.HasPrefix(row, prev) {
					continue
				}
				prev, havePrev = prefix, true
				items = append(items, prefix)
			} else {
				havePrev = false
				items = append(items, row)
			}
			if len(items) >= quota {
				// Rows left in the batch that fall outside the remembered
				// group would surface new items.
				if i < len(rows)-1 && !(havePrev && strings.HasPrefix(lastRow, prev)) {
					res.IsTruncated = true
				}
				break scan
			}
		}

		if havePrev {
			cursor = listing.AfterPrefix(prev)
		} else {
			cursor = listing.After(lastRow)
		}
	}

	res.Items = items
	return res, nil
}

// GetStats reads the counters and the index size.
func (s *Shard) GetStats() ShardStats {
	return ShardStats{
		Ops: OperationStats{
			Gets:    atomic.LoadUint64(&s.Stats.Ops.Gets),
			Puts:    atomic.LoadUint64(&s.Stats.Ops.Puts),
			Deletes: atomic.LoadUint64(&s.Stats.Ops.Deletes),
			Lists:   atomic.LoadUint64(&s.Stats.Ops.Lists),
		},
		Storage: s.Store.Stats(),
	}
}

// Info returns the shard's size, greatest key and operation counters
func (s *Shard) Info() ShardInfo {
	stats := s.GetStats()
	last, _ := s.Store.Last()

	return ShardInfo{
		ID:       s.ID,
		KeyCount: stats.Storage.Keys,
		ByteSize: stats.Storage.Bytes,
		LastKey:  last,
		Ops:      stats.Ops,
	}
}
