// Package coordinator implements the bucket-level side of ordered listing.
// See doc.go for complete package documentation.
package coordinator

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/shardlist/internal/listing"
)

// ErrInvalidRequest is returned for page requests that cannot be served.
var ErrInvalidRequest = errors.New("invalid list request")

// ShardQuerier is the ranged query a shard serves to the coordinator.
// *shard.Shard implements it in process; a remote client would implement it
// over RPC.
type ShardQuerier interface {
	Query(ctx context.Context, q listing.Query) (listing.ShardResult, error)
}

// Queriers adapts a slice of concrete shards to the interface slice NewLister takes.
func Queriers[S ShardQuerier](shards []S) []ShardQuerier {
	out := make([]ShardQuerier, len(shards))
	for i, s := range shards {
		out[i] = s
	}
	return out
}

// PageRequest is one client listing call.
type PageRequest struct {
	Marker    string            // resume after this key or, with a delimiter, this prefix group
	Delimiter listing.Delimiter // optional prefix collapsing
	MaxKeys   int               // page size cap
	ReadAhead int               // hint for how many entries to size shard requests for
}

// Lister produces globally ordered pages over a fixed set of shards.
//
// Each round sizes a per-shard quota from the balls-into-bins estimate, queries
// every shard concurrently, waits for all of them, and merges their ordered
// outputs. Rounds repeat until the page is at least half full or the attempt
// ceiling is reached with at least one item.
//
// Thread Safety:
// A Lister holds no per-call state and may serve concurrent ListPage calls.
type Lister struct {
	shards []ShardQuerier
	logger *zap.Logger
}

// NewLister creates a lister over shards, which must be ordered by shard ID.
func NewLister(shards []ShardQuerier, logger *zap.Logger) (*Lister, error) {
	if len(shards) == 0 {
		return nil, errors.New("lister needs at least one shard")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lister{shards: shards, logger: logger}, nil
}

// NumShards returns the number of shards the lister fans out to.
func (l *Lister) NumShards() int {
	return len(l.shards)
}

// mergeState is the part of a ListPage call that survives across rounds.
type mergeState struct {
	delimiter listing.Delimiter
	maxKeys   int
	items     []string
	prev      string
	havePrev  bool
}

// ListPage returns one page of keys and common prefixes in global byte order.
//
// The page never holds more than req.MaxKeys items and never holds two
// consecutive items with the same common prefix. IsTruncated is the OR of the
// shard truncation flags from the round the call ended in. When the page fills
// up in the middle of a merge that flag was computed before the remaining
// buffered items were looked at, and is reported as is.
func (l *Lister) ListPage(ctx context.Context, req PageRequest) (listing.Page, error) {
	if req.MaxKeys < 0 || req.ReadAhead < 0 {
		return listing.Page{}, errors.Wrapf(ErrInvalidRequest,
			"max keys %d, read ahead %d", req.MaxKeys, req.ReadAhead)
	}

	page := listing.Page{Telemetry: listing.Telemetry{ListCalls: 1}}
	toRead := max(req.MaxKeys, req.ReadAhead)
	cursor := listing.StartCursor(req.Marker, req.Delimiter)
	half := (req.MaxKeys + 1) / 2
	st := &mergeState{
		delimiter: req.Delimiter,
		maxKeys:   req.MaxKeys,
		items:     make([]string, 0, req.MaxKeys),
	}

	finish := func() (listing.Page, error) {
		page.Items = st.items
		page.Telemetry.Returned = len(st.items)
		return page, nil
	}

	for attempt := 1; ; attempt++ {
		quota := listing.ShardQuota(max(toRead+1-attempt, 0), len(l.shards))
		l.logger.Debug("listing round",
			zap.Int("attempt", attempt),
			zap.Int("entries_to_request", quota),
			zap.Int("current_results", len(st.items)),
			zap.Stringer("cursor", cursor))

		results, err := l.fanOut(ctx, listing.Query{
			Cursor:    cursor,
			Delimiter: req.Delimiter,
			Quota:     quota,
		})
		if err != nil {
			return listing.Page{}, err
		}

		page.IsTruncated = false
		for _, r := range results {
			page.IsTruncated = page.IsTruncated || r.IsTruncated
			page.Telemetry.Add(r.Telemetry)
			page.Telemetry.ShardCalls++
		}

		if full := st.merge(results); full {
			return finish()
		}
		if len(st.items) == 0 {
			// Every shard came back empty past the cursor.
			return finish()
		}

		cursor, err = st.nextCursor()
		if err != nil {
			return listing.Page{}, err
		}

		if len(st.items) >= half {
			return finish()
		}
		if attempt >= listing.MaxAttempts {
			return finish()
		}
	}
}

// fanOut queries every shard concurrently and returns once all have answered.
// Results are indexed by shard position.
func (l *Lister) fanOut(ctx context.Context, q listing.Query) ([]listing.ShardResult, error) {
	results := make([]listing.ShardResult, len(l.shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range l.shards {
		i, s := i, s
		g.Go(func() error {
			res, err := s.Query(gctx, q)
			if err != nil {
				return errors.Wrapf(err, "query shard %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge consumes the round's shard outputs in global order until the page is
// full, every buffer is drained, or a truncated shard runs dry. A truncated
// shard with nothing left may still hold keys smaller than the other shards'
// heads, so merging past it could skip them. Reports whether the page is full.
func (st *mergeState) merge(results []listing.ShardResult) bool {
	heads := make([]int, len(results))
	for {
		if len(st.items) >= st.maxKeys {
			return true
		}

		next := -1
		for i, r := range results {
			if heads[i] == len(r.Items) {
				if r.IsTruncated {
					return false
				}
				continue
			}
			if next < 0 || r.Items[heads[i]] < results[next].Items[heads[next]] {
				next = i
			}
		}
		if next < 0 {
			return false
		}

		item := results[next].Items[heads[next]]
		heads[next]++
		st.add(item)
	}
}

// add appends item, dropping it when it repeats the remembered prefix.
func (st *mergeState) add(item string) {
	prefix, ok := st.delimiter.CommonPrefix(item)
	if !ok {
		st.havePrev = false
		st.items = append(st.items, item)
		return
	}
	if st.havePrev && strings.HasPrefix(item, st.prev) {
		return
	}
	st.prev, st.havePrev = prefix, true
	st.items = append(st.items, prefix)
}

// nextCursor positions the next round after everything collected so far.
func (st *mergeState) nextCursor() (listing.Cursor, error) {
	last := st.items[len(st.items)-1]
	if !st.delimiter.Enabled() {
		return listing.After(last), nil
	}
	if st.havePrev {
		return listing.AfterPrefix(st.prev), nil
	}
	if _, isPrefix := st.delimiter.CommonPrefix(last); isPrefix {
		return listing.Cursor{}, &listing.InvariantError{
			Op:        "next cursor",
			Detail:    "last item is a common prefix but no prefix is remembered",
			Collected: len(st.items),
			LastItem:  last,
		}
	}
	return listing.After(last), nil
}
