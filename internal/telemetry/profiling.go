package telemetry

import (
	"fmt"
	"maps"
	"runtime"
	"slices"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL, e.g. "http://localhost:4040".
	Endpoint string

	// ProfileTypes are keys of profileTypes.
	ProfileTypes []string

	// Tags are attached to every profile next to the version.
	Tags map[string]string
}

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

// ProfileTypes lists the accepted profile type names.
func ProfileTypes() []string {
	return slices.Sorted(maps.Keys(profileTypes))
}

var (
	profiler         *pyroscope.Profiler
	profilingEnabled bool
)

// InitProfiling starts the profiler. The returned function stops it.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	profilingEnabled = false
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	types, err := resolveProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}

	tags := maps.Clone(cfg.Tags)
	if tags == nil {
		tags = make(map[string]string, 1)
	}
	tags["version"] = cfg.ServiceVersion

	profiler, err = pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	profilingEnabled = true

	return func() error {
		profilingEnabled = false
		if profiler == nil {
			return nil
		}
		return profiler.Stop()
	}, nil
}

// IsProfilingEnabled reports whether the profiler is running.
func IsProfilingEnabled() bool {
	return profilingEnabled
}

// resolveProfileTypes maps names to pyroscope types. Mutex and block
// profiles are empty unless the runtime samples them, so asking for one
// turns sampling on.
func resolveProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	out := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, ok := profileTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		switch pt {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			runtime.SetMutexProfileFraction(5)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			runtime.SetBlockProfileRate(5)
		}
		out = append(out, pt)
	}
	return out, nil
}
