package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_cache_hits_total",
		Help: "Total requests served from a named cache.",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_cache_misses_total",
		Help: "Total requests that missed every applicable cache.",
	})
	FallbacksServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_fallbacks_total",
		Help: "Total synthesized offline fallback responses.",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_depth",
		Help: "Operations currently held in the sync queue (failed included).",
	})
	SyncRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_sync_runs_total",
		Help: "Total queue drain passes started.",
	})
	SyncOpsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_sync_ops_succeeded_total",
		Help: "Total queued operations replayed successfully.",
	})
	SyncOpsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_sync_ops_failed_total",
		Help: "Total replay attempts that failed and were scheduled for retry.",
	})
	SyncOpsExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_sync_ops_exhausted_total",
		Help: "Total operations flagged failed after the retry budget ran out.",
	})

	ConnectivityOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offline_connectivity_online",
		Help: "1 when the connectivity monitor believes the backend is reachable.",
	})
)

var (
	storageWriteSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_storage_write_seconds",
		Help:    "Latency of single-key storage writes.",
		Buckets: prometheus.DefBuckets,
	})
	storageReadSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_storage_read_seconds",
		Help:    "Latency of single-key storage reads.",
		Buckets: prometheus.DefBuckets,
	})
	storageCommitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_storage_commit_seconds",
		Help:    "Latency of batch commits.",
		Buckets: prometheus.DefBuckets,
	})
	storageCommitBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "offline_storage_commit_bytes",
		Help:    "Payload size of batch commits.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10),
	})
)

func Register() {
	prometheus.MustRegister(
		CacheHits, CacheMisses, FallbacksServed,
		QueueDepth, SyncRuns, SyncOpsSucceeded, SyncOpsFailed, SyncOpsExhausted,
		ConnectivityOnline,
		storageWriteSeconds, storageReadSeconds, storageCommitSeconds, storageCommitBytes,
	)
}

// RouterStats adapts the cache counters to the router's Stats hook.
type RouterStats struct{}

func (RouterStats) CacheHit()  { CacheHits.Inc() }
func (RouterStats) CacheMiss() { CacheMisses.Inc() }
func (RouterStats) Fallback()  { FallbacksServed.Inc() }

// Storage observes the storage layer. Plug into pebble Options.Metrics.
type Storage struct{}

func (Storage) ObserveWrite(d time.Duration, _ int) {
	storageWriteSeconds.Observe(d.Seconds())
}

func (Storage) ObserveRead(d time.Duration, _ int) {
	storageReadSeconds.Observe(d.Seconds())
}

func (Storage) ObserveBatchCommit(d time.Duration, _, bytes int) {
	storageCommitSeconds.Observe(d.Seconds())
	storageCommitBytes.Observe(float64(bytes))
}
