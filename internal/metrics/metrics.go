// Package metrics holds the Prometheus collectors for member caching,
// SQL execution and predicate construction.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Member cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_member_cache_lookups_total",
			Help: "Member cache lookups by partition and result",
		},
		[]string{"partition", "result"}, // partition: member/children/level; result: hit/miss
	)

	CacheFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_member_cache_flushes_total",
			Help: "Whole-hierarchy member cache flushes",
		},
		[]string{"hierarchy", "reason"},
	)

	CacheRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_member_cache_removals_total",
			Help: "Members removed from the cache",
		},
		[]string{"hierarchy"},
	)

	// SQL metrics
	SQLExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_sql_executions_total",
			Help: "SQL statements executed",
		},
		[]string{"purpose", "status"},
	)

	SQLDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leapolap_sql_duration_seconds",
			Help:    "SQL execution time until the cursor is closed",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"purpose"},
	)

	SQLRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_sql_rows_total",
			Help: "Rows read from SQL cursors",
		},
		[]string{"purpose"},
	)

	// Predicate metrics
	CompoundPredicates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_compound_predicates_total",
			Help: "Compound predicates built by outcome",
		},
		[]string{"outcome"}, // built/unsatisfiable/calculated_measure/unsupported
	)

	// Change notification metrics
	ChangeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leapolap_change_events_total",
			Help: "Change-log events applied to the hierarchy tracker",
		},
		[]string{"kind"},
	)
)
