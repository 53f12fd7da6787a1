package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "streamit", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestStartSpan_NoOp(t *testing.T) {
	tracer = nil
	enabled = false

	ctx, span := StartSpan(context.Background(), "test.operation")
	require.NotNil(t, ctx)
	defer span.End()

	// No-op spans carry no ids.
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))

	// Helpers are safe on a no-op span.
	AddEvent(ctx, EventSuspend, Wait("tag"))
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	SetAttributes(ctx, Stage(1))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), sampler(0.25).Description())
}

func TestStartCommandSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer("test")
	t.Cleanup(func() { tracer = nil })

	ctx, span := StartCommandSpan(context.Background(), "load-src", "filter_load", Filter(0x100))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "spu.command.filter_load", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), CommandName("load-src"))
	assert.Contains(t, ended[0].Attributes(), attribute.String(AttrFilter, "0x00100"))
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		attr attribute.KeyValue
		key  string
		want string
	}{
		{CommandKind("filter_run"), AttrCommandKind, "filter_run"},
		{Buffer(0x2a0), AttrBuffer, "0x002a0"},
		{EA(0x100000), AttrEA, "0x100000"},
		{Direction("put"), AttrDirection, "put"},
		{Bucket("ea"), AttrBucket, "ea"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.key, string(tt.attr.Key))
			assert.Equal(t, tt.want, tt.attr.Value.Emit())
		})
	}

	assert.Equal(t, int64(4096), Iters(4096).Value.AsInt64())
	assert.Equal(t, int64(3), Tag(3).Value.AsInt64())
	assert.Equal(t, int64(2), Stage(2).Value.AsInt64())
}

func TestResolveProfileTypes(t *testing.T) {
	types, err := resolveProfileTypes([]string{"cpu", "inuse_objects", "block_duration"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU, pyroscope.ProfileInuseObjects, pyroscope.ProfileBlockDuration,
	}, types)

	_, err = resolveProfileTypes([]string{"cpu", "heap"})
	assert.ErrorContains(t, err, `"heap"`)

	assert.Len(t, ProfileTypes(), 10)
	assert.Contains(t, ProfileTypes(), "mutex_count")
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}
