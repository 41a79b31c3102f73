package otel

import (
	"context"
	"strings"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =skip,tenant=pool")
	if len(got) != 2 || got["api-key"] != "abc" || got["tenant"] != "pool" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestInitWithoutTraces(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "lendingd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestWithEnvDefaults(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4318 ")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "tenant=pool")

	cfg := Config{ServiceName: "lendingd"}.WithEnvDefaults()
	if cfg.Endpoint != "collector:4318" || cfg.Headers["tenant"] != "pool" {
		t.Fatalf("env defaults not applied: %+v", cfg)
	}

	explicit := Config{Endpoint: "otel:4318", Headers: map[string]string{"k": "v"}}.WithEnvDefaults()
	if explicit.Endpoint != "otel:4318" || len(explicit.Headers) != 1 || explicit.Headers["k"] != "v" {
		t.Fatalf("explicit settings overridden: %+v", explicit)
	}
}

func TestSamplerSelection(t *testing.T) {
	for _, ratio := range []float64{0, 1, -2} {
		if got := sampler(ratio).Description(); got != "AlwaysOnSampler" {
			t.Fatalf("ratio %v: sampler %q, want AlwaysOnSampler", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); !strings.HasPrefix(got, "ParentBased") || !strings.Contains(got, "TraceIDRatioBased{0.25}") {
		t.Fatalf("ratio 0.25: sampler %q", got)
	}
}
