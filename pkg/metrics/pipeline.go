package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics records optimization pipeline activity.
type PipelineMetrics struct {
	optimizationsTotal   *prometheus.CounterVec
	optimizationDuration *prometheus.HistogramVec
	originalBytes        prometheus.Histogram
	optimizedBytes       prometheus.Histogram
	queueDepth           prometheus.Gauge
	activeWorkers        prometheus.Gauge
	rejectedTotal        *prometheus.CounterVec
}

// NewPipelineMetrics creates Prometheus-backed pipeline metrics, or nil if
// metrics are not enabled.
func NewPipelineMetrics() *PipelineMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &PipelineMetrics{
		optimizationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgforge_optimizations_total",
				Help: "Total number of optimization tasks by outcome",
			},
			[]string{"status"},
		),
		optimizationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "imgforge_optimization_duration_milliseconds",
				Help: "Duration of optimization tasks in milliseconds",
				Buckets: []float64{
					50,    // 50ms - thumbnails
					100,   // 100ms
					500,   // 500ms - typical photos
					1000,  // 1s
					5000,  // 5s - large images, avif
					15000, // 15s
					60000, // 60s
				},
			},
			[]string{"format"},
		),
		originalBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "imgforge_original_bytes",
				Help: "Distribution of uploaded image sizes in bytes",
				Buckets: []float64{
					65536,    // 64KB
					262144,   // 256KB
					1048576,  // 1MB
					5242880,  // 5MB
					10485760, // 10MB
					52428800, // 50MB
				},
			},
		),
		optimizedBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "imgforge_optimized_bytes",
				Help: "Distribution of optimized image sizes in bytes",
				Buckets: []float64{
					16384,    // 16KB
					65536,    // 64KB
					262144,   // 256KB
					1048576,  // 1MB
					5242880,  // 5MB
					10485760, // 10MB
				},
			},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "imgforge_pool_queue_depth",
				Help: "Current number of tasks waiting in the worker pool queue",
			},
		),
		activeWorkers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "imgforge_pool_active_workers",
				Help: "Current number of workers executing tasks",
			},
		),
		rejectedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgforge_rejections_total",
				Help: "Total number of rejected requests by reason",
			},
			[]string{"reason"},
		),
	}
}

// RecordOptimization records one completed optimization task.
func (m *PipelineMetrics) RecordOptimization(format string, originalBytes, optimizedBytes int, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.optimizationsTotal.WithLabelValues(status).Inc()
	m.optimizationDuration.WithLabelValues(format).Observe(duration.Seconds() * 1000)
	m.originalBytes.Observe(float64(originalBytes))
	if err == nil {
		m.optimizedBytes.Observe(float64(optimizedBytes))
	}
}

// SetPoolState updates the pool gauges.
func (m *PipelineMetrics) SetPoolState(queueDepth, activeWorkers int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(queueDepth))
	m.activeWorkers.Set(float64(activeWorkers))
}

// RecordRejection counts a rejected request.
func (m *PipelineMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}
