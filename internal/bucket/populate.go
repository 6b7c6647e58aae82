package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// progressEvery is how many files are inserted between progress checks.
const progressEvery = 10000

// ObjectName returns the synthetic object key for a directory and file index.
func ObjectName(dir, file int) string {
	return fmt.Sprintf("dir%02d/file%06d", dir, file)
}

// Populate fills b with dirs×entries synthetic keys named dirNN/fileNNNNNN.
// Progress is logged at most once per second.
func Populate(ctx context.Context, b *Bucket, dirs, entries int, logger *zap.Logger) error {
	if dirs < 0 || entries < 0 {
		return errors.Errorf("populate: negative size dirs=%d entries=%d", dirs, entries)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("populating bucket",
		zap.String("bucket", b.Name),
		zap.Int("shards", b.NumShards()),
		zap.Int("dirs", dirs),
		zap.Int("entries", entries))

	last := time.Now()
	for dir := 0; dir < dirs; dir++ {
		for file := 0; file < entries; file++ {
			object := ObjectName(dir, file)
			if err := b.Put(object); err != nil {
				return err
			}
			if file%progressEvery != 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, "populate: stopped at %s", object)
			}
			if time.Since(last) > time.Second {
				logger.Info("adding", zap.String("object", object))
				last = time.Now()
			}
		}
	}
	return nil
}
