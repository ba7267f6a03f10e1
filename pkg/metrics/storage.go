package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageMetrics records object-store operation outcomes. It satisfies the
// blob s3 Metrics interface.
type StorageMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesUploaded     prometheus.Counter
}

// NewStorageMetrics creates Prometheus-backed storage metrics.
//
// Returns nil if metrics are not enabled; the nil value is safe to pass to
// stores and costs nothing.
func NewStorageMetrics() *StorageMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &StorageMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgforge_storage_operations_total",
				Help: "Total number of object store operations by type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "imgforge_storage_operation_duration_milliseconds",
				Help: "Duration of object store operations in milliseconds",
				Buckets: []float64{
					10,    // 10ms - head calls
					50,    // 50ms - small uploads
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - large images
					5000,  // 5s
					10000, // 10s
				},
			},
			[]string{"operation"},
		),
		bytesUploaded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "imgforge_storage_bytes_uploaded_total",
				Help: "Total bytes uploaded to the object store",
			},
		),
	}
}

// ObserveOperation records one store operation with its duration and outcome.
func (m *StorageMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000)
}

// RecordBytesUploaded adds to the upload byte counter.
func (m *StorageMetrics) RecordBytesUploaded(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesUploaded.Add(float64(bytes))
}
