package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yxiaowhut/streamit/internal/bytesize"
)

// Config is the static configuration of a streamit core.
//
// Configuration sources (in order of precedence):
//  1. CLI flags
//  2. Environment variables (STREAMIT_*)
//  3. Configuration file (YAML)
//  4. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Core sizes the local store and the transfer channel.
	Core CoreConfig `mapstructure:"core" yaml:"core"`

	// Shared selects the block store backing the EA space.
	Shared SharedConfig `mapstructure:"shared" yaml:"shared"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing of command execution.
type TelemetryConfig struct {
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector (host:port).
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of runs traced, 0.0 to 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus endpoint. When disabled nothing is
// collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// CoreConfig sizes a single core.
type CoreConfig struct {
	// LocalStoreSize must be a quadword multiple that fits in 32 bits.
	// Default: 256Ki
	LocalStoreSize bytesize.ByteSize `mapstructure:"local_store_size" validate:"required" yaml:"local_store_size"`

	// MaxTransferSize caps a single DMA piece.
	// Default: 16Ki
	MaxTransferSize bytesize.ByteSize `mapstructure:"max_transfer_size" validate:"required" yaml:"max_transfer_size"`

	// Tags is the size of the DMA tag pool.
	// Default: 32
	Tags int `mapstructure:"tags" validate:"required,min=1,max=1024" yaml:"tags"`

	// Slots is the DMA queue depth.
	// Default: 16
	Slots int `mapstructure:"slots" validate:"required,min=1,max=1024" yaml:"slots"`

	// DrainTimeout bounds the wait for in-flight transfers when a run stops
	// early.
	// Default: 10s
	DrainTimeout time.Duration `mapstructure:"drain_timeout" validate:"required,gt=0" yaml:"drain_timeout"`
}

// SharedConfig describes the EA space.
type SharedConfig struct {
	// Backend is memory, filesystem, badger or s3.
	// Default: memory
	Backend string `mapstructure:"backend" validate:"required,oneof=memory filesystem badger s3" yaml:"backend"`

	// PageSize is the page granularity, a power of two.
	// Default: 64Ki
	PageSize bytesize.ByteSize `mapstructure:"page_size" validate:"required" yaml:"page_size"`

	// KeyPrefix namespaces pages inside the store.
	// Default: "ea/"
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem,omitempty"`
	Badger     BadgerConfig     `mapstructure:"badger" yaml:"badger,omitempty"`
	S3         S3Config         `mapstructure:"s3" yaml:"s3,omitempty"`
}

// FilesystemConfig stores one file per page below Path.
type FilesystemConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// BadgerConfig stores pages in an embedded BadgerDB.
type BadgerConfig struct {
	Path       string `mapstructure:"path" yaml:"path,omitempty"`
	InMemory   bool   `mapstructure:"in_memory" yaml:"in_memory,omitempty"`
	SyncWrites bool   `mapstructure:"sync_writes" yaml:"sync_writes,omitempty"`
}

// S3Config stores pages as objects in an S3-compatible bucket.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	MaxRetries     int    `mapstructure:"max_retries" validate:"omitempty,min=0" yaml:"max_retries,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// Leave empty to use the default AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Load reads configuration from configPath (or the default location when
// empty), overlays STREAMIT_* environment variables, applies defaults and
// validates the result. A missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load with instructions for the user when no file exists.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  streamit init\n\n"+
				"Or specify a custom config file:\n"+
				"  streamit <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  streamit init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML. The file may carry S3 credentials, so it is
// created owner-only.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper wires env overrides (STREAMIT_CORE_TAGS=8) and the file search.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("STREAMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindEnvKeys registers every leaf key so AutomaticEnv also applies to keys
// absent from the file.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := f.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			bindEnvKeys(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook accepts "256Ki", "16KiB" or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %d", v)
			}
			return bytesize.ByteSize(v), nil
		case int64:
			if v < 0 {
				return nil, fmt.Errorf("negative byte size %d", v)
			}
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook accepts "30s" style strings; raw integers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/streamit, ~/.config/streamit, or "."
// when no home directory is known.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "streamit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "streamit")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
