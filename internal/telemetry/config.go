package telemetry

// Config configures span export. A zero Config leaves tracing off.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector, host:port.
	Endpoint string
	Insecure bool

	// SampleRate is the fraction of root command spans kept. Values at or
	// above 1 keep everything, at or below 0 keep nothing.
	SampleRate float64
}

// DefaultConfig points at a collector on localhost with tracing off.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "streamit",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
