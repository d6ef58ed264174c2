package observability

import (
	"testing"

	"github.com/authorstack/authorstack/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizesTelemetry(t *testing.T) {
	got := LoadConfig(config.Config{
		AppName:     " authorstack-api ",
		AppVersion:  "1.4.0",
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:      " WARN ",
			LogFormat:     "logfmt",
			OTelEnabled:   true,
			OTLPEndpoint:  "collector:4318",
			OTLPProtocol:  "HTTP",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "authorstack-api", got.ServiceName)
	assert.Equal(t, "warn", got.LogLevel)
	assert.Equal(t, "json", got.LogFormat)
	assert.True(t, got.OtelEnabled)
	assert.Equal(t, "http/protobuf", got.OtelExporterProtocol)
	assert.Equal(t, 1.0, got.OtelSamplingRatio)
	assert.False(t, got.Debug())
}

func TestLoadConfigDefaults(t *testing.T) {
	got := LoadConfig(config.Config{
		Environment: "development",
		Telemetry:   config.TelemetryConfig{OTelEnabled: true, SamplingRatio: -1},
	})

	assert.Equal(t, defaultServiceName, got.ServiceName)
	assert.Equal(t, "info", got.LogLevel)
	assert.Equal(t, "grpc", got.OtelExporterProtocol)
	assert.False(t, got.OtelEnabled, "no endpoint, no export")
	assert.Zero(t, got.OtelSamplingRatio)
	assert.True(t, got.Debug())
}

func TestDebugFollowsLogLevel(t *testing.T) {
	assert.True(t, Config{Environment: "production", LogLevel: "debug"}.Debug())
	assert.True(t, Config{Environment: " Test "}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
