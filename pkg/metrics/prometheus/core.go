// Package prometheus implements the metrics interfaces on top of
// client_golang. Importing it registers the constructors used by
// metrics.NewCoreMetrics and metrics.NewStoreMetrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yxiaowhut/streamit/pkg/metrics"
)

const namespace = "streamit"

func init() {
	metrics.RegisterCoreMetricsConstructor(func() metrics.CoreMetrics {
		return NewCoreMetrics(metrics.GetRegistry())
	})
	metrics.RegisterStoreMetricsConstructor(func() metrics.StoreMetrics {
		return NewStoreMetrics(metrics.GetRegistry())
	})
}

type coreMetrics struct {
	filterLoads    prometheus.Counter
	filterUnloads  prometheus.Counter
	filterRuns     prometheus.Counter
	workIterations prometheus.Counter
	workSeconds    prometheus.Counter
	workDuration   prometheus.Histogram
	commands       *prometheus.CounterVec
	transfers      *prometheus.CounterVec
	transferBytes  *prometheus.CounterVec
}

// NewCoreMetrics registers the core collectors with reg.
func NewCoreMetrics(reg prometheus.Registerer) metrics.CoreMetrics {
	factory := promauto.With(reg)

	return &coreMetrics{
		filterLoads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "loads_total",
			Help:      "Filter loads started",
		}),
		filterUnloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "unloads_total",
			Help:      "Filter unloads started",
		}),
		filterRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "runs_total",
			Help:      "Filter runs that executed every requested iteration",
		}),
		workIterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "iterations_total",
			Help:      "Iterations executed by work routines",
		}),
		workSeconds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "seconds_total",
			Help:      "Cumulative time spent inside work routines",
		}),
		workDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "work",
			Name:      "call_duration_seconds",
			Help:      "Duration of a single work-routine call",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10), // 1us .. ~262ms
		}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "completed_total",
			Help:      "Completed commands by kind",
		}, []string{"kind"}),
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dma",
			Name:      "transfers_total",
			Help:      "DMA pieces issued by direction",
		}, []string{"direction"}),
		transferBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dma",
			Name:      "bytes_total",
			Help:      "Bytes moved by DMA pieces by direction",
		}, []string{"direction"}),
	}
}

func (m *coreMetrics) FilterLoadStarted() {
	if m == nil {
		return
	}
	m.filterLoads.Inc()
}

func (m *coreMetrics) FilterUnloadStarted() {
	if m == nil {
		return
	}
	m.filterUnloads.Inc()
}

func (m *coreMetrics) FilterRunDone() {
	if m == nil {
		return
	}
	m.filterRuns.Inc()
}

func (m *coreMetrics) ObserveWork(iters uint32, d time.Duration) {
	if m == nil {
		return
	}
	m.workIterations.Add(float64(iters))
	m.workSeconds.Add(d.Seconds())
	m.workDuration.Observe(d.Seconds())
}

func (m *coreMetrics) CommandCompleted(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *coreMetrics) TransferIssued(dir string, bytes int) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(dir).Inc()
	m.transferBytes.WithLabelValues(dir).Add(float64(bytes))
}
