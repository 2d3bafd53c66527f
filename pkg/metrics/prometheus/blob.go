package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PantaKoda/shiftsnap/pkg/metrics"
)

// blobMetrics is the Prometheus implementation of metrics.BlobMetrics.
type blobMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewBlobMetrics creates a Prometheus-backed BlobMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBlobMetrics() metrics.BlobMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &blobMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftsnap_blob_operations_total",
				Help: "Total number of blob store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "shiftsnap_blob_operation_duration_milliseconds",
				Help: "Duration of blob store operations in milliseconds",
				Buckets: []float64{
					10,    // 10ms - head requests
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms - typical screenshot upload
					1000,  // 1s
					5000,  // 5s - slow link
					30000, // 30s - timeout territory
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftsnap_blob_bytes_transferred_total",
				Help: "Total payload bytes moved through the blob store",
			},
			[]string{"operation"},
		),
	}
}

func (m *blobMetrics) RecordOperation(operation string, duration time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *blobMetrics) RecordBytes(operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}
