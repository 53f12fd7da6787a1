package config

import (
	"strings"

	"github.com/yxiaowhut/streamit/pkg/dispatch"
	"github.com/yxiaowhut/streamit/pkg/dma"
	"github.com/yxiaowhut/streamit/pkg/localstore"
	"github.com/yxiaowhut/streamit/pkg/shared"
)

// ApplyDefaults fills zero-valued fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyCoreDefaults(&cfg.Core)
	applySharedDefaults(&cfg.Shared)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCoreDefaults(cfg *CoreConfig) {
	if cfg.LocalStoreSize == 0 {
		cfg.LocalStoreSize = localstore.DefaultSize
	}
	if cfg.MaxTransferSize == 0 {
		cfg.MaxTransferSize = dma.MaxTransferSize
	}
	if cfg.Tags == 0 {
		cfg.Tags = dma.DefaultTags
	}
	if cfg.Slots == 0 {
		cfg.Slots = dma.DefaultSlots
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = dispatch.DefaultDrainTimeout
	}
}

func applySharedDefaults(cfg *SharedConfig) {
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	cfg.Backend = strings.ToLower(cfg.Backend)

	if cfg.PageSize == 0 {
		cfg.PageSize = shared.DefaultPageSize
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = shared.DefaultPrefix
	}
	if cfg.Backend == BackendBadger && cfg.Badger.Path == "" {
		cfg.Badger.InMemory = true
	}
}

// GetDefaultConfig returns a configuration that runs entirely in memory.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
