// internal/common/metrics/metrics.go
package metrics

import (
	"strconv"

	"exam-queue/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_queue_transitions_total",
			Help: "Evaluation completions by committee and result",
		},
		[]string{"committee", "result"},
	)

	StudentsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_queue_students_imported_total",
			Help: "Students appended by bulk import",
		},
	)

	StudentsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exam_queue_students",
			Help: "Current number of students per committee and status",
		},
		[]string{"committee", "status"},
	)

	StoreVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_queue_store_version",
			Help: "Version of the current in-memory snapshot",
		},
	)

	StartupSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_queue_startup_source_total",
			Help: "Data source that won the startup fallback chain",
		},
		[]string{"source"},
	)

	RefreshFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_queue_refresh_failures_total",
			Help: "Periodic student refreshes that kept the last known snapshot",
		},
	)

	MirrorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_queue_mirror_failures_total",
			Help: "Mutations that could not be mirrored to the remote API",
		},
		[]string{"operation"},
	)

	CacheWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_queue_cache_write_failures_total",
			Help: "Snapshot writes to the local cache that failed",
		},
	)

	CacheNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_queue_cache_notifications_total",
			Help: "Change notifications received from other processes",
		},
	)
)

// RecordQueueState resets the per-committee gauges to match students.
func RecordQueueState(version uint64, students []models.Student) {
	StudentsByStatus.Reset()
	for _, s := range students {
		StudentsByStatus.WithLabelValues(strconv.Itoa(s.CommitteeID), string(s.Status)).Inc()
	}
	StoreVersion.Set(float64(version))
}
