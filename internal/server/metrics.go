package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dreamware/shardlist/internal/listing"
)

const namespace = "shardlist"

// Metrics holds the server's Prometheus collectors. Listing telemetry is
// added explicitly after each page; nothing in the listing path touches
// these directly.
type Metrics struct {
	ListCalls  prometheus.Counter
	ShardCalls prometheus.Counter
	Queries    prometheus.Counter
	RowsRead   prometheus.Counter
	Returned   prometheus.Counter

	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec

	ShardKeys   *prometheus.GaugeVec
	SkewedShard prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listing",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		ListCalls:  counter("list_calls_total", "Count of bucket listing page requests"),
		ShardCalls: counter("shard_calls_total", "Count of shard queries issued by the coordinator"),
		Queries:    counter("index_queries_total", "Count of non-empty index scans executed by shards"),
		RowsRead:   counter("rows_read_total", "Count of raw index rows read by shard scans"),
		Returned:   counter("returned_total", "Count of keys and common prefixes returned to clients"),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of http requests, by response status code and HTTP method",
		}, []string{"code", "method"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of time spent processing requests, by response status code and HTTP method",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"code", "method"}),
		ShardKeys: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "shard",
			Name:      "keys",
			Help:      "Number of keys held by each shard at the last monitor sample",
		}, []string{"shard"}),
		SkewedShard: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "shard",
			Name:      "skewed",
			Help:      "Number of shards whose key count strays from the mean beyond the skew threshold",
		}),
	}
}

// ObserveTelemetry adds one page's telemetry to the listing counters.
func (m *Metrics) ObserveTelemetry(t listing.Telemetry) {
	m.ListCalls.Add(float64(t.ListCalls))
	m.ShardCalls.Add(float64(t.ShardCalls))
	m.Queries.Add(float64(t.Queries))
	m.RowsRead.Add(float64(t.RowsRead))
	m.Returned.Add(float64(t.Returned))
}

func (m *Metrics) setShardKeys(id, keys int) {
	m.ShardKeys.WithLabelValues(strconv.Itoa(id)).Set(float64(keys))
}
