// Package server exposes a bucket over the S3 API: ordered, paginated
// listing with delimiter collapsing, object reads, writes and deletes, plus
// health, shard statistics and Prometheus metrics.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dreamware/shardlist/internal/bucket"
	"github.com/dreamware/shardlist/internal/coordinator"
)

const (
	// MaxReadAhead caps the read-ahead hint a client may pass.
	MaxReadAhead = 100000

	shutdownTimeout = 5 * time.Second
)

// Options tune a Server. The zero value is usable.
type Options struct {
	// ReadAhead is the read-ahead hint used when a request names none.
	ReadAhead int
	// Registry receives the server's metrics and is served on /metrics.
	// A fresh registry is created when nil.
	Registry *prometheus.Registry
	// MonitorInterval, when positive, attaches a ShardMonitor sampling at
	// that interval. The caller runs it with Monitor().Start; /debug/shards
	// then reports its last sample.
	MonitorInterval time.Duration
}

// Server serves one bucket.
type Server struct {
	bucket    *bucket.Bucket
	lister    *coordinator.Lister
	logger    *zap.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
	monitor   *ShardMonitor
	readAhead int
	created   time.Time // reported as every object's modification time
}

// New creates a server for b, listing through a Lister over b's shards.
func New(b *bucket.Bucket, logger *zap.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lister, err := coordinator.NewLister(coordinator.Queriers(b.Shards()), logger.Named("lister"))
	if err != nil {
		return nil, errors.Wrapf(err, "bucket %q", b.Name)
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		bucket:    b,
		lister:    lister,
		logger:    logger,
		metrics:   NewMetrics(reg),
		registry:  reg,
		readAhead: opts.ReadAhead,
		created:   time.Now().UTC().Truncate(time.Second),
	}
	if opts.MonitorInterval > 0 {
		s.monitor = NewShardMonitor(b.Shards(), opts.MonitorInterval, s.metrics, logger.Named("monitor"))
	}
	return s, nil
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Monitor returns the attached shard monitor, nil when none was configured.
func (s *Server) Monitor() *ShardMonitor {
	return s.monitor
}

// Router builds the HTTP routes: operational endpoints first, everything
// else to the S3 API.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Path("/health").Methods("GET", "HEAD").HandlerFunc(s.handleHealth)
	router.Path("/metrics").Methods("GET").Handler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	router.Path("/debug/shards").Methods("GET").HandlerFunc(s.handleShards)
	router.PathPrefix("/").Handler(s.s3Router())
	return router
}

// Handler returns the routes wrapped with request instrumentation.
func (s *Server) Handler() http.Handler {
	return promhttp.InstrumentHandlerDuration(s.metrics.Duration,
		promhttp.InstrumentHandlerCounter(s.metrics.Requests, s.Router()))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is canceled, then shuts down gracefully.
// Requests in flight when ctx is canceled run to completion within the
// shutdown timeout; their contexts keep ctx's values but not its
// cancellation.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.httpServer(ctx)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", lis.Addr().String()), zap.String("bucket", s.bucket.Name))
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	}
}

func (s *Server) httpServer(ctx context.Context) *http.Server {
	return &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
}
