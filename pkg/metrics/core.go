package metrics

import "time"

// CoreMetrics receives the command core's telemetry hooks. Every method is
// advisory; an implementation that drops them changes nothing observable.
type CoreMetrics interface {
	// FilterLoadStarted fires when a FilterLoad begins staging a filter.
	FilterLoadStarted()

	// FilterUnloadStarted fires when a FilterUnload begins tearing one down.
	FilterUnloadStarted()

	// FilterRunDone fires when a FilterRun has executed every iteration.
	FilterRunDone()

	// ObserveWork records one work-routine call of iters iterations.
	ObserveWork(iters uint32, d time.Duration)

	// CommandCompleted counts completions by command kind.
	CommandCompleted(kind string)

	// TransferIssued counts DMA pieces by direction ("get" or "put").
	TransferIssued(dir string, bytes int)
}

// NewCoreMetrics returns the Prometheus-backed CoreMetrics, or nil when
// metrics are disabled.
//
//	metrics.InitRegistry()
//	core := metrics.NewCoreMetrics()
//	handler := command.NewHandler(command.Env{Metrics: core, ...})
func NewCoreMetrics() CoreMetrics {
	if !IsEnabled() || newPrometheusCoreMetrics == nil {
		return nil
	}
	return newPrometheusCoreMetrics()
}

// newPrometheusCoreMetrics is set by pkg/metrics/prometheus so this package
// does not import its own implementation.
var newPrometheusCoreMetrics func() CoreMetrics

// RegisterCoreMetricsConstructor installs the CoreMetrics implementation.
// Called from pkg/metrics/prometheus during package initialization.
func RegisterCoreMetricsConstructor(constructor func() CoreMetrics) {
	newPrometheusCoreMetrics = constructor
}

// FilterLoadStarted is a nil-safe wrapper.
func FilterLoadStarted(m CoreMetrics) {
	if m != nil {
		m.FilterLoadStarted()
	}
}

// FilterUnloadStarted is a nil-safe wrapper.
func FilterUnloadStarted(m CoreMetrics) {
	if m != nil {
		m.FilterUnloadStarted()
	}
}

// FilterRunDone is a nil-safe wrapper.
func FilterRunDone(m CoreMetrics) {
	if m != nil {
		m.FilterRunDone()
	}
}

// ObserveWork is a nil-safe wrapper.
func ObserveWork(m CoreMetrics, iters uint32, d time.Duration) {
	if m != nil {
		m.ObserveWork(iters, d)
	}
}

// CommandCompleted is a nil-safe wrapper.
func CommandCompleted(m CoreMetrics, kind string) {
	if m != nil {
		m.CommandCompleted(kind)
	}
}

// TransferIssued is a nil-safe wrapper.
func TransferIssued(m CoreMetrics, dir string, bytes int) {
	if m != nil {
		m.TransferIssued(dir, bytes)
	}
}
