package observability

import (
	"context"
	"testing"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("InitTracing disabled: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("InitTracing returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestInitTracing_UnsupportedExporter(t *testing.T) {
	cfg := TracingConfig{Enabled: true, Exporter: "carrier-pigeon", ServiceName: "test"}
	if _, err := InitTracing(context.Background(), cfg, nil); err == nil {
		t.Fatalf("unsupported exporter accepted")
	}
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "true")
	t.Setenv("SIM_TRACING_EXPORTER", "otlp")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "test-sim")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled {
		t.Fatalf("Enabled = false")
	}
	if cfg.Exporter != "otlp" {
		t.Fatalf("Exporter = %q, want otlp", cfg.Exporter)
	}
	if cfg.ServiceName != "test-sim" {
		t.Fatalf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.SampleRatio != 0.5 {
		t.Fatalf("SampleRatio = %v, want 0.5", cfg.SampleRatio)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Fatalf("Endpoint = %q", cfg.Endpoint)
	}
}

func TestTracingConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "")
	t.Setenv("SIM_TRACING_EXPORTER", "")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "not-a-number")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatalf("Enabled = true with no env set")
	}
	if cfg.Exporter != "stdout" {
		t.Fatalf("Exporter = %q, want stdout default", cfg.Exporter)
	}
	if cfg.ServiceName != "sensornet-simulator" {
		t.Fatalf("ServiceName = %q, want default", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("SampleRatio = %v, want fallback 1.0", cfg.SampleRatio)
	}
}
