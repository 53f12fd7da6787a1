package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yxiaowhut/streamit/pkg/metrics"
)

type storeMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// NewStoreMetrics registers the page store collectors with reg.
func NewStoreMetrics(reg prometheus.Registerer) metrics.StoreMetrics {
	factory := promauto.With(reg)

	return &storeMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Page store operations by backend, operation and status",
		}, []string{"backend", "operation", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Page store operation latency",
			Buckets: []float64{
				0.00001, // 10us - memory
				0.0001,  // 100us
				0.001,   // 1ms - local disk
				0.01,    // 10ms
				0.05,    // 50ms - object storage
				0.25,
				1,
			},
		}, []string{"backend", "operation"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bytes_total",
			Help:      "Page bytes moved by backend and operation",
		}, []string{"backend", "operation"}),
	}
}

func (m *storeMetrics) ObserveOperation(backend, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(backend, op, status).Inc()
	m.duration.WithLabelValues(backend, op).Observe(d.Seconds())
}

func (m *storeMetrics) RecordBytes(backend, op string, bytes int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(backend, op).Add(float64(bytes))
}
