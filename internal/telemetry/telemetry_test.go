package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/BaSui01/genaiscope/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

// saveAndRestoreGlobalProviders snapshots the current global OTel providers
// and restores them via t.Cleanup so tests don't leak state.
func saveAndRestoreGlobalProviders(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func shutdownOnCleanup(t *testing.T, p *Providers) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestInit_Disabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	for _, cfg := range []config.TelemetryConfig{
		{Enabled: false, Exporter: config.ExporterStdout},
		{Enabled: true, Exporter: config.ExporterNone},
	} {
		p, err := Init(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, p)

		assert.Nil(t, p.tp, "TracerProvider should be nil when disabled")
		assert.Nil(t, p.mp, "MeterProvider should be nil when disabled")
		assert.False(t, p.Enabled())

		// 访问器返回 noop 实现，可直接交给客户端
		_, span := p.TracerProvider().Tracer("t").Start(context.Background(), "s")
		assert.False(t, span.IsRecording())
		assert.NotNil(t, p.MeterProvider())
	}
}

func TestInit_Stdout(t *testing.T) {
	saveAndRestoreGlobalProviders(t)
	var buf bytes.Buffer

	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true
	cfg.Exporter = config.ExporterStdout

	p, err := Init(context.Background(), cfg, zaptest.NewLogger(t), WithStdoutWriter(&buf))
	require.NoError(t, err)
	require.True(t, p.Enabled())

	// Global providers should be the SDK types (not noop)
	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tpIsSDK, "global TracerProvider should be *sdktrace.TracerProvider")
	assert.True(t, mpIsSDK, "global MeterProvider should be *sdkmetric.MeterProvider")

	_, span := p.TracerProvider().Tracer("test").Start(context.Background(), "chat.completions gpt-4")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "chat.completions gpt-4", "shutdown flushes the batched span")
	assert.Contains(t, buf.String(), "genaiscope", "resource carries the service name")
}

func TestInit_WithoutGlobal(t *testing.T) {
	saveAndRestoreGlobalProviders(t)
	before := otel.GetTracerProvider()

	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true

	p, err := Init(context.Background(), cfg, zaptest.NewLogger(t),
		WithStdoutWriter(&bytes.Buffer{}), WithoutGlobal())
	require.NoError(t, err)
	shutdownOnCleanup(t, p)

	assert.True(t, p.Enabled())
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInit_OTLPExporters(t *testing.T) {
	// Exporters connect lazily, so creation succeeds without a collector.
	for _, exporter := range []string{config.ExporterOTLPGRPC, config.ExporterOTLPHTTP} {
		t.Run(exporter, func(t *testing.T) {
			saveAndRestoreGlobalProviders(t)

			cfg := config.DefaultTelemetryConfig()
			cfg.Enabled = true
			cfg.Exporter = exporter
			cfg.ServiceName = "genaiscope-test"
			cfg.SampleRate = 0.5

			p, err := Init(context.Background(), cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			shutdownOnCleanup(t, p)

			assert.NotNil(t, p.tp)
			assert.NotNil(t, p.mp)
		})
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true
	cfg.Exporter = "zipkin"

	_, err := Init(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown exporter type: zipkin")
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, sampler(tt.rate).Description(), tt.want)
	}
}

func TestProviders_Shutdown_Nil(t *testing.T) {
	// A nil *Providers must not panic on Shutdown.
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.TracerProvider())
}

func TestProviders_Shutdown_Noop(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p, err := Init(context.Background(), config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestBuildVersion(t *testing.T) {
	v := buildVersion()
	assert.NotEmpty(t, v, "buildVersion should return a non-empty string")
	// In test binaries, debug.ReadBuildInfo typically returns "(devel)",
	// so buildVersion falls back to "dev".
	assert.Equal(t, "dev", v)
}
