package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bucket metrics
	BucketsOpenTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jaxbucket_buckets_open_total",
			Help: "Total number of buckets currently open in this peer's mount cache",
		},
	)

	ManifestHeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jaxbucket_manifest_height",
			Help: "Height of the last manifest saved or loaded, by bucket ID",
		},
		[]string{"bucket_id"},
	)

	SharesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jaxbucket_shares_total",
			Help: "Total number of shares on a bucket's current manifest, by bucket ID and role",
		},
		[]string{"bucket_id", "role"},
	)

	// Blob store metrics
	BlobsStoredTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jaxbucket_blobs_stored_total",
			Help: "Total number of blobs currently present in the local store",
		},
	)

	BlobBytesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jaxbucket_blob_bytes_stored",
			Help: "Total bytes currently held in the local blob store",
		},
	)

	BlobsGarbageCollectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jaxbucket_blobs_gc_total",
			Help: "Total number of unpinned blobs removed by garbage collection",
		},
	)

	// Sync engine metrics
	SyncPullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaxbucket_sync_pulls_total",
			Help: "Total number of Pull attempts by final state",
		},
		[]string{"state"},
	)

	SyncPullDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jaxbucket_sync_pull_duration_seconds",
			Help:    "Time taken for one Pull call to reach a terminal state",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncBlobsDownloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jaxbucket_sync_blobs_downloaded_total",
			Help: "Total number of blobs fetched from remotes during Pull",
		},
	)

	SyncConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jaxbucket_sync_conflicts_total",
			Help: "Total number of path conflicts resolved during merge_from",
		},
	)

	SyncRevocationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jaxbucket_sync_revocations_total",
			Help: "Total number of Pull attempts that ended Revoked",
		},
	)

	// Transport metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaxbucket_rpc_requests_total",
			Help: "Total number of transport RPCs served, by method and status",
		},
		[]string{"method", "status"},
	)

	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jaxbucket_rpc_duration_seconds",
			Help:    "Transport RPC duration in seconds, by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Save/merge operation metrics
	SaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jaxbucket_save_duration_seconds",
			Help:    "Time taken for Mount.Save, including node re-encryption",
			Buckets: prometheus.DefBuckets,
		},
	)

	MergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jaxbucket_merge_duration_seconds",
			Help:    "Time taken for Mount.MergeFrom to replay a remote op log",
			Buckets: prometheus.DefBuckets,
		},
	)

	AnnouncesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jaxbucket_announces_total",
			Help: "Total number of Announce calls fanned out to remotes, by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(BucketsOpenTotal)
	prometheus.MustRegister(ManifestHeight)
	prometheus.MustRegister(SharesTotal)
	prometheus.MustRegister(BlobsStoredTotal)
	prometheus.MustRegister(BlobBytesStored)
	prometheus.MustRegister(BlobsGarbageCollectedTotal)

	prometheus.MustRegister(SyncPullsTotal)
	prometheus.MustRegister(SyncPullDuration)
	prometheus.MustRegister(SyncBlobsDownloadedTotal)
	prometheus.MustRegister(SyncConflictsTotal)
	prometheus.MustRegister(SyncRevocationsTotal)

	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCDuration)

	prometheus.MustRegister(SaveDuration)
	prometheus.MustRegister(MergeDuration)
	prometheus.MustRegister(AnnouncesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
