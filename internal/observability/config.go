package observability

import (
	"strings"

	"github.com/authorstack/authorstack/internal/config"
)

const defaultServiceName = "authorstack"

// Config is the normalized telemetry view of the application config shared
// by the logger, tracer and meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig never fails: unknown values fall back to defaults so a typo in
// a telemetry variable cannot keep the API from starting. Export is off
// when no collector endpoint is set.
func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry
	endpoint := strings.TrimSpace(t.OTLPEndpoint)

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             oneOf(t.LogLevel, "info", "debug", "info", "warn", "error"),
		LogFormat:            oneOf(t.LogFormat, "json", "json", "console"),
		OtelEnabled:          t.OTelEnabled && endpoint != "",
		OtelExporterEndpoint: endpoint,
		OtelExporterProtocol: exporterProtocol(t.OTLPProtocol),
		OtelSamplingRatio:    clampRatio(t.SamplingRatio),
	}
}

// Debug enables verbose request logs and internal error messages outside
// production-like environments, or when the log level asks for it.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func oneOf(value, def string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return def
}

func exporterProtocol(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "http", "http/protobuf":
		return "http/protobuf"
	default:
		return "grpc"
	}
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
