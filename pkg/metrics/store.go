package metrics

import "time"

// StoreMetrics records shared-memory page store operations.
type StoreMetrics interface {
	// ObserveOperation records one store call ("read", "write", "delete",
	// "list") with its outcome.
	ObserveOperation(backend, op string, d time.Duration, err error)

	// RecordBytes counts page bytes moved by op.
	RecordBytes(backend, op string, bytes int)
}

// NewStoreMetrics returns the Prometheus-backed StoreMetrics, or nil when
// metrics are disabled.
func NewStoreMetrics() StoreMetrics {
	if !IsEnabled() || newPrometheusStoreMetrics == nil {
		return nil
	}
	return newPrometheusStoreMetrics()
}

var newPrometheusStoreMetrics func() StoreMetrics

// RegisterStoreMetricsConstructor installs the StoreMetrics implementation.
func RegisterStoreMetricsConstructor(constructor func() StoreMetrics) {
	newPrometheusStoreMetrics = constructor
}

// ObserveOperation is a nil-safe wrapper.
func ObserveOperation(m StoreMetrics, backend, op string, d time.Duration, err error) {
	if m != nil {
		m.ObserveOperation(backend, op, d, err)
	}
}

// RecordBytes is a nil-safe wrapper.
func RecordBytes(m StoreMetrics, backend, op string, bytes int) {
	if m != nil {
		m.RecordBytes(backend, op, bytes)
	}
}
