package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MediaUploads counts media uploads by kind and result.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_media_uploads_total",
		Help: "Total number of media uploads by kind and result",
	}, []string{"kind", "result"})

	// MediaUploadLatency records object storage upload latency.
	MediaUploadLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lumen_media_upload_latency_seconds",
		Help:    "Media upload latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// MediaCleanupFailures counts best-effort deletions and temp-file removals that failed.
	MediaCleanupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_media_cleanup_failures_total",
		Help: "Total number of failed best-effort media cleanups",
	}, []string{"target"})

	// MediaBreakerState is 0 closed, 1 half-open, 2 open.
	MediaBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lumen_media_circuit_breaker_state",
		Help: "Media storage circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	// StoreConflicts counts optimistic-concurrency rejections per collection.
	StoreConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_store_version_conflicts_total",
		Help: "Total number of writes rejected by the version check",
	}, []string{"collection"})

	// RelationshipOps counts follow graph and aggregate mutations that changed state.
	RelationshipOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_relationship_operations_total",
		Help: "Total number of relationship mutations by operation",
	}, []string{"operation"})

	// InconsistentWrites counts multi-record writes that stopped halfway.
	InconsistentWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_inconsistent_writes_total",
		Help: "Total number of partially applied multi-record writes",
	}, []string{"operation"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// TokensRevoked counts logouts that wrote a revocation entry.
	TokensRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumen_tokens_revoked_total",
		Help: "Total number of revoked access tokens",
	})
)
