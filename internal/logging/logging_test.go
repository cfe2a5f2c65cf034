package logging

import (
	"context"
	"testing"
)

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRunID minted an empty ID")
	}
	if got := RunIDFromContext(ctx); got != id {
		t.Fatalf("RunIDFromContext = %q, want %q", got, id)
	}

	// A second call must keep the existing ID.
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("EnsureRunID replaced an existing ID: %q -> %q", id, id2)
	}
	if got := RunIDFromContext(ctx2); got != id {
		t.Fatalf("RunIDFromContext after second call = %q, want %q", got, id)
	}
}

func TestRunIDFromContext_Absent(t *testing.T) {
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Fatalf("RunIDFromContext on bare context = %q, want empty", got)
	}
	if got := RunIDFromContext(nil); got != "" {
		t.Fatalf("RunIDFromContext on nil context = %q, want empty", got)
	}
}

func TestNewRunID_Unique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Fatalf("NewRunID not unique: %q, %q", a, b)
	}
}

func TestWithRunLogger(t *testing.T) {
	ctx, log := WithRunLogger(context.Background(), nil)
	if log == nil {
		t.Fatalf("WithRunLogger returned nil logger")
	}
	if RunIDFromContext(ctx) == "" {
		t.Fatalf("WithRunLogger did not attach a run ID")
	}
	// The annotated logger must be usable.
	log.Info(ctx, "probe", String("k", "v"), Int("n", 1), Any("x", 2.5))
}

func TestContextWithLogger(t *testing.T) {
	base := Noop()
	ctx := ContextWithLogger(context.Background(), base)
	if got := LoggerFromContext(ctx); got == nil {
		t.Fatalf("LoggerFromContext lost the logger")
	}
	if got := LoggerFromContext(context.Background()); got != nil {
		t.Fatalf("LoggerFromContext invented a logger")
	}
}

func TestNew_HandlesFormatsAndLevels(t *testing.T) {
	for _, cfg := range []Config{
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "text"},
		{Level: "unknown", Format: "unknown"},
	} {
		log := New(cfg)
		if log == nil {
			t.Fatalf("New(%+v) returned nil", cfg)
		}
		log.With(String("component", "test")).Debug(context.Background(), "probe")
	}
}
