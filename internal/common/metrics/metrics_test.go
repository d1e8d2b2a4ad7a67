// internal/common/metrics/metrics_test.go
package metrics

import (
	"testing"

	"exam-queue/internal/seed"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordQueueState(t *testing.T) {
	RecordQueueState(7, seed.Students())

	assert.Equal(t, 1.0, testutil.ToFloat64(StudentsByStatus.WithLabelValues("1", "IN_PROGRESS")))
	assert.Equal(t, 4.0, testutil.ToFloat64(StudentsByStatus.WithLabelValues("1", "WAITING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(StudentsByStatus.WithLabelValues("2", "COMPLETED")))
	assert.Equal(t, 7.0, testutil.ToFloat64(StoreVersion))

	RecordQueueState(8, seed.Students()[:1])
	assert.Equal(t, 0.0, testutil.ToFloat64(StudentsByStatus.WithLabelValues("2", "COMPLETED")))
}
