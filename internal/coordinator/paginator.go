package coordinator

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dreamware/shardlist/internal/listing"
)

// Paginator drives a Lister the way a client walks a bucket, one page call at
// a time, and sums the telemetry of every call it makes.
type Paginator struct {
	lister *Lister
	logger *zap.Logger
}

// NewPaginator wraps lister.
func NewPaginator(lister *Lister, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paginator{lister: lister, logger: logger}
}

// Simulate issues page calls from the start of the bucket with a shrinking
// remaining quota until maxKeys items were returned in total or a call
// reports no truncation. Every call starts from an empty marker, emulating a
// client whose successive requests all restart the listing.
func (p *Paginator) Simulate(ctx context.Context, maxKeys, readAhead int, d listing.Delimiter) (listing.Telemetry, error) {
	var total listing.Telemetry
	fetched := 0
	for {
		remaining := maxKeys - fetched
		p.logger.Info("listing bucket",
			zap.Int("max_keys", remaining),
			zap.Int("read_ahead", readAhead),
			zap.String("delimiter", d.String()))

		page, err := p.lister.ListPage(ctx, PageRequest{
			Delimiter: d,
			MaxKeys:   remaining,
			ReadAhead: readAhead,
		})
		if err != nil {
			return total, err
		}
		total.Add(page.Telemetry)
		fetched += len(page.Items)

		p.logger.Info("list returned",
			zap.Int("entries", len(page.Items)),
			zap.Bool("truncated", page.IsTruncated))

		if fetched >= maxKeys || !page.IsTruncated {
			return total, nil
		}
	}
}

// ListAll walks the whole bucket in pages of pageSize, passing the last item
// of each page as the next marker, and returns every key and common prefix in
// order.
//
// A full page is followed up even when it reports no truncation, because a
// page that fills up mid-merge reports the truncation flags of shards that
// had not been drained yet. The walk ends on a short untruncated page or an
// empty one.
func (p *Paginator) ListAll(ctx context.Context, pageSize, readAhead int, d listing.Delimiter) ([]string, listing.Telemetry, error) {
	var total listing.Telemetry
	if pageSize < 1 {
		return nil, total, errors.Wrapf(ErrInvalidRequest, "page size %d", pageSize)
	}

	var all []string
	marker := ""
	for {
		page, err := p.lister.ListPage(ctx, PageRequest{
			Marker:    marker,
			Delimiter: d,
			MaxKeys:   pageSize,
			ReadAhead: readAhead,
		})
		if err != nil {
			return all, total, errors.Wrapf(err, "after marker %q", marker)
		}
		total.Add(page.Telemetry)
		all = append(all, page.Items...)

		if len(page.Items) == 0 {
			return all, total, nil
		}
		if !page.IsTruncated && len(page.Items) < pageSize {
			return all, total, nil
		}
		marker = page.NextMarker()
	}
}
