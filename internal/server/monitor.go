package server

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/shardlist/internal/shard"
)

// DefaultSkewThreshold flags a shard whose key count differs from the mean
// by more than half the mean.
const DefaultSkewThreshold = 0.5

// ShardSample is one shard's state at a monitor tick.
type ShardSample struct {
	Info   shard.ShardInfo `json:"info"`
	Skewed bool            `json:"skewed"`
}

// ShardMonitor periodically samples every shard's metadata, publishes per-shard
// key gauges and flags shards whose size strays from the mean.
//
// Request sizing assumes keys are spread uniformly, so a skewed shard makes
// listings take more rounds. The monitor reports that; it does not rebalance.
// Thread-safe: All methods are safe for concurrent access.
type ShardMonitor struct {
	shards    []*shard.Shard
	metrics   *Metrics
	logger    *zap.Logger
	onSkew    func(ShardSample) // called once when a shard becomes skewed
	interval  time.Duration
	threshold float64

	mu      sync.RWMutex // guards onSkew, threshold and the last sample
	samples []ShardSample
	sampled time.Time

	runMu   sync.Mutex // orders wg.Add in Start against Stop
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewShardMonitor creates a monitor over shards that samples every interval.
// metrics may be nil.
func NewShardMonitor(shards []*shard.Shard, interval time.Duration, metrics *Metrics, logger *zap.Logger) *ShardMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShardMonitor{
		shards:    shards,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		threshold: DefaultSkewThreshold,
		stopCh:    make(chan struct{}),
	}
}

// SetOnSkew sets the callback invoked when a shard becomes skewed. It runs
// on the sampling goroutine without the lock held.
func (m *ShardMonitor) SetOnSkew(callback func(ShardSample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSkew = callback
}

// SetThreshold changes the relative deviation from the mean that counts as skew.
func (m *ShardMonitor) SetThreshold(threshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Start samples immediately and then on every tick until ctx is canceled or
// Stop is called. It blocks. Once Stop has been called Start returns at once,
// so a monitor cannot be restarted.
func (m *ShardMonitor) Start(ctx context.Context) {
	m.runMu.Lock()
	if m.stopped {
		m.runMu.Unlock()
		return
	}
	m.wg.Add(1)
	m.runMu.Unlock()
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("shard monitor started", zap.Duration("interval", m.interval), zap.Int("shards", len(m.shards)))
	m.Sample()

	for {
		select {
		case <-ticker.C:
			m.Sample()
		case <-ctx.Done():
			m.logger.Info("shard monitor stopping", zap.Error(ctx.Err()))
			return
		case <-m.stopCh:
			m.logger.Info("shard monitor stopping")
			return
		}
	}
}

// Stop ends every running Start and waits for them to return. It is safe to
// call more than once and before Start.
func (m *ShardMonitor) Stop() {
	m.runMu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.stopCh)
	}
	m.runMu.Unlock()
	m.wg.Wait()
}

// Sample takes one snapshot of every shard and returns it.
func (m *ShardMonitor) Sample() []ShardSample {
	samples := make([]ShardSample, len(m.shards))
	total := 0
	for i, s := range m.shards {
		samples[i].Info = s.Info()
		total += samples[i].Info.KeyCount
	}

	mean := 0.0
	if len(samples) > 0 {
		mean = float64(total) / float64(len(samples))
	}

	m.mu.Lock()
	onSkew := m.onSkew
	previous := m.samples
	skewed := 0
	var newlySkewed []ShardSample
	for i := range samples {
		keys := float64(samples[i].Info.KeyCount)
		samples[i].Skewed = mean > 0 && math.Abs(keys-mean) > m.threshold*mean
		if !samples[i].Skewed {
			continue
		}
		skewed++
		if i >= len(previous) || !previous[i].Skewed {
			newlySkewed = append(newlySkewed, samples[i])
		}
	}
	m.samples = samples
	m.sampled = time.Now()
	m.mu.Unlock()

	if m.metrics != nil {
		for _, s := range samples {
			m.metrics.setShardKeys(s.Info.ID, s.Info.KeyCount)
		}
		m.metrics.SkewedShard.Set(float64(skewed))
	}

	for _, s := range newlySkewed {
		m.logger.Warn("shard key count strays from the mean",
			zap.Int("shard", s.Info.ID),
			zap.Int("keys", s.Info.KeyCount),
			zap.Float64("mean", mean))
		if onSkew != nil {
			onSkew(s)
		}
	}
	return samples
}

// Snapshot returns a copy of the last sample and when it was taken. The
// slice is nil before the first sample.
func (m *ShardMonitor) Snapshot() ([]ShardSample, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.samples == nil {
		return nil, m.sampled
	}
	out := make([]ShardSample, len(m.samples))
	copy(out, m.samples)
	return out, m.sampled
}
