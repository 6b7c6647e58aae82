package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dreamware/shardlist/internal/bucket"
	"github.com/dreamware/shardlist/internal/config"
	"github.com/dreamware/shardlist/internal/coordinator"
	"github.com/dreamware/shardlist/internal/logging"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	out        io.Writer
	configPath string
	flags      config.Config // flag values, applied only when set
	cfg        config.Config // effective settings
	logger     *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, flags: config.Default()}

	rootCmd := &cobra.Command{
		Use:   "shardlist",
		Short: "Ordered listing over a hash-sharded bucket index",
		Long: `Builds a bucket of dirNN/fileNNNNNN objects spread over hash shards and
lists it the way a client would, printing how much work the listing cost:
client page requests, shard queries, index scans and rows read.

Environment variables:
  SHARDLIST_SHARDS, SHARDLIST_DIRS, SHARDLIST_ENTRIES, SHARDLIST_DELIMITER,
  SHARDLIST_MAX_KEYS, SHARDLIST_READ_AHEAD, SHARDLIST_HASH, SHARDLIST_LISTEN,
  SHARDLIST_LOG_LEVEL, SHARDLIST_BUCKET, SHARDLIST_MONITOR_INTERVAL`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.simulate(cmd.Context())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.flags.LogLevel, "log-level", a.flags.LogLevel, "log level: debug, info, warn, error")
	pf.IntVarP(&a.flags.Shards, "shards", "s", a.flags.Shards, "number of bucket index shards")
	pf.StringVar(&a.flags.Hash, "hash", a.flags.Hash, "placement hash: md5 or xxh3")
	pf.IntVarP(&a.flags.Dirs, "dirs", "d", a.flags.Dirs, "number of directories in the synthetic dataset")
	pf.IntVarP(&a.flags.Entries, "entries", "e", a.flags.Entries, "files per directory")
	pf.BoolVarP(&a.flags.Delimiter, "delimiter", "l", a.flags.Delimiter, "list with '/' as delimiter")
	pf.IntVarP(&a.flags.MaxKeys, "max-keys", "m", a.flags.MaxKeys, "keys to list in total")
	pf.IntVarP(&a.flags.ReadAhead, "read-ahead", "r", a.flags.ReadAhead, "read-ahead hint for shard request sizing")
	pf.StringVar(&a.flags.Bucket, "bucket", a.flags.Bucket, "bucket name")

	rootCmd.AddCommand(newServeCmd(a), newLsCmd(a))
	return rootCmd
}

// setup resolves the effective configuration and builds the logger.
func (a *app) setup(flags *pflag.FlagSet) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return errors.Wrap(err, "environment")
	}

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.LogLevel = a.flags.LogLevel
		case "shards":
			cfg.Shards = a.flags.Shards
		case "hash":
			cfg.Hash = a.flags.Hash
		case "dirs":
			cfg.Dirs = a.flags.Dirs
		case "entries":
			cfg.Entries = a.flags.Entries
		case "delimiter":
			cfg.Delimiter = a.flags.Delimiter
		case "max-keys":
			cfg.MaxKeys = a.flags.MaxKeys
		case "read-ahead":
			cfg.ReadAhead = a.flags.ReadAhead
		case "bucket":
			cfg.Bucket = a.flags.Bucket
		case "listen":
			cfg.Listen = a.flags.Listen
		case "monitor-interval":
			cfg.MonitorInterval = a.flags.MonitorInterval
		}
	})

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// buildBucket creates and populates the synthetic bucket.
func (a *app) buildBucket(ctx context.Context) (*bucket.Bucket, error) {
	fmt.Fprintf(a.out, "creating bucket with %d shards, %d dirs with %d entries each\n",
		a.cfg.Shards, a.cfg.Dirs, a.cfg.Entries)

	b, err := bucket.New(a.cfg.Bucket, a.cfg.Shards, bucket.WithHash(a.cfg.HashFunc()))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := bucket.Populate(ctx, b, a.cfg.Dirs, a.cfg.Entries, a.logger); err != nil {
		return nil, err
	}
	a.logger.Info("bucket populated", zap.Int("keys", b.Len()), zap.Duration("took", time.Since(start)))
	return b, nil
}

// simulate lists the bucket from the start the way the configured client
// would and prints the work it cost.
func (a *app) simulate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := a.buildBucket(ctx)
	if err != nil {
		return err
	}

	lister, err := coordinator.NewLister(coordinator.Queriers(b.Shards()), a.logger.Named("lister"))
	if err != nil {
		return err
	}
	tel, err := coordinator.NewPaginator(lister, a.logger).Simulate(ctx, a.cfg.MaxKeys, a.cfg.ReadAhead, a.cfg.Delim())
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "%d list requests were made\n", tel.ListCalls)
	fmt.Fprintf(a.out, "%d shard requests were made\n", tel.ShardCalls)
	fmt.Fprintf(a.out, "%d index queries were submitted\n", tel.Queries)
	fmt.Fprintf(a.out, "%d rows were returned\n", tel.RowsRead)
	fmt.Fprintf(a.out, "%d entries were listed\n", tel.Returned)
	return nil
}
