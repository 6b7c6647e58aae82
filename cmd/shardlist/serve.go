package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/shardlist/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Populate the synthetic bucket and serve it over HTTP",
		Long: `Builds the synthetic bucket and serves it with an S3-style API:

  GET    /{bucket}?marker=&delimiter=&max-keys=&read-ahead=
  PUT    /{bucket}/{key}
  DELETE /{bucket}/{key}
  GET    /health, /metrics, /debug/shards

Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&a.flags.Listen, "listen", a.flags.Listen, "address to listen on")
	cmd.Flags().DurationVar(&a.flags.MonitorInterval, "monitor-interval", a.flags.MonitorInterval, "how often shard sizes are sampled")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	b, err := a.buildBucket(ctx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := server.New(b, a.logger, server.Options{
		ReadAhead:       a.cfg.ReadAhead,
		Registry:        reg,
		MonitorInterval: a.cfg.MonitorInterval,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv.Monitor().Start(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, a.cfg.Listen)
	})
	err = g.Wait()
	a.logger.Info("server stopped", zap.Error(err))
	return err
}
