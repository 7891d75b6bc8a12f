package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SocialEvents counts likes, unlikes, comments, follows and unfollows.
	SocialEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_social_events_total",
		Help: "Total number of social interactions by kind",
	}, []string{"kind"})

	// NotificationsDelivered counts notifications appended to a recipient log,
	// labelled by type and whether realtime publish succeeded.
	NotificationsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_notifications_delivered_total",
		Help: "Total number of notifications appended by type",
	}, []string{"type", "realtime"})

	// RealtimeEvents counts notification events seen on the Redis channels.
	RealtimeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_realtime_events_total",
		Help: "Total number of notification events relayed over Redis pub/sub",
	}, []string{"type"})

	// NotificationsPruned counts notifications removed by the retention cap.
	NotificationsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_notifications_pruned_total",
		Help: "Total number of notifications removed by the per-user retention cap",
	})

	// DraftOperations counts draft store operations by kind and outcome.
	DraftOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_draft_operations_total",
		Help: "Total number of draft store operations",
	}, []string{"operation", "result"})

	// CacheLookups counts cache-aside reads by key family and hit or miss.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Total number of cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// RedisCommandLatency records redis round trips by command name.
	RedisCommandLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_redis_command_latency_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"command"})

	// ImportRecords counts legacy records processed by the importer.
	ImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_import_records_total",
		Help: "Total number of legacy records processed by kind and result",
	}, []string{"kind", "result"})
)

// ObserveQuery records the latency of a database query.
func ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		ObserveQuery(operation, table, start)
	}
}

// Outcome maps an error to the "ok"/"error" label used by counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
