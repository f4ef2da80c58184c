package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesSynced counts files processed by index syncs.
	// Labels: result (indexed, removed, skipped)
	FilesSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cunzhi",
			Subsystem: "search",
			Name:      "files_synced_total",
			Help:      "Total number of files indexed, removed or skipped by index syncs",
		},
		[]string{"result"},
	)

	// SyncDuration tracks how long an index sync takes.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cunzhi",
			Subsystem: "search",
			Name:      "sync_duration_seconds",
			Help:      "Duration of project index syncs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// QueriesTotal counts search queries.
	// Labels: result (hit, empty, error)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cunzhi",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of search queries by result",
		},
		[]string{"result"},
	)

	// IndexedChunks reports the chunk count of the last synced project.
	IndexedChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cunzhi",
			Subsystem: "search",
			Name:      "indexed_chunks",
			Help:      "Number of chunks in the most recently synced project index",
		},
	)
)
