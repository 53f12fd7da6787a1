package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yxiaowhut/streamit/internal/logger"
	"github.com/yxiaowhut/streamit/internal/telemetry"
	"github.com/yxiaowhut/streamit/pkg/bufpool"
	"github.com/yxiaowhut/streamit/pkg/config"
	"github.com/yxiaowhut/streamit/pkg/metrics"
	"github.com/yxiaowhut/streamit/pkg/shared"
	"github.com/yxiaowhut/streamit/pkg/store/block"
)

// loadConfig reads --config (or the default location) and applies
// --log-level. A missing file yields the in-memory defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// environment is everything a run needs besides the core itself. It
// outlives individual runs in --watch mode.
type environment struct {
	cfg         *config.Config
	store       block.Store
	memory      *shared.Paged
	pool        *bufpool.Pool
	coreMetrics metrics.CoreMetrics
	shutdown    []func(context.Context) error
}

// setup initializes logging, tracing, profiling, metrics and the shared
// memory backend, in that order.
func setup(ctx context.Context, cfg *config.Config) (_ *environment, err error) {
	env := &environment{cfg: cfg}
	defer func() {
		if err != nil {
			env.close(context.Background())
		}
	}()

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracingShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "streamit",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	env.shutdown = append(env.shutdown, tracingShutdown)

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "streamit",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags:           map[string]string{"backend": cfg.Shared.Backend},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	env.shutdown = append(env.shutdown, func(context.Context) error { return profilingShutdown() })

	// The registry must exist before the store is created so that it is
	// instrumented.
	var storeMetrics metrics.StoreMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		env.coreMetrics = metrics.NewCoreMetrics()
		storeMetrics = metrics.NewStoreMetrics()

		srv := metrics.NewServer(cfg.Metrics.Port)
		metrics.Serve(srv)
		env.shutdown = append(env.shutdown, func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	env.store, err = config.CreateBlockStore(ctx, cfg.Shared, storeMetrics)
	if err != nil {
		return nil, err
	}
	env.pool = config.CreateBufferPool(cfg)
	env.memory, err = config.CreateSharedMemory(env.store, cfg.Shared, env.pool)
	if err != nil {
		return nil, err
	}

	logger.Info("Environment ready",
		logger.KeyStoreType, cfg.Shared.Backend,
		"page_size", cfg.Shared.PageSize.String(),
		"local_store", cfg.Core.LocalStoreSize.String(),
		"tracing", telemetry.IsEnabled(),
		"profiling", telemetry.IsProfilingEnabled(),
		"metrics", metrics.IsEnabled())
	return env, nil
}

func (e *environment) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logger.Warn("Store close failed", logger.Err(err))
		}
	}
	for i := len(e.shutdown) - 1; i >= 0; i-- {
		if err := e.shutdown[i](ctx); err != nil {
			logger.Warn("Shutdown hook failed", logger.Err(err))
		}
	}
}
