package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		if _, err := New(Options{Env: env, Level: "warn", Service: "svc"}); err != nil {
			t.Errorf("env %s: %v", env, err)
		}
	}
	if _, err := New(Options{Env: "staging"}); err == nil {
		t.Error("expected error for unknown env")
	}
	if _, err := New(Options{Env: "prod", Level: "loud"}); err == nil {
		t.Error("expected error for bad level")
	}
}

func TestNew_LevelOverride(t *testing.T) {
	l, err := New(Options{Env: "dev", Level: "error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn must be disabled at error level")
	}
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error must be enabled")
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewExample()
	if FromContextOr(context.Background(), fallback) != fallback {
		t.Error("expected fallback logger")
	}

	core, logs := observer.New(zap.InfoLevel)
	ctx := WithFields(ContextWithLogger(context.Background(), zap.New(core)), nil, zap.String("pipeline_id", "p1"))
	FromContextOr(ctx, nil).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["pipeline_id"] != "p1" {
		t.Errorf("missing pipeline_id field: %v", entries[0].ContextMap())
	}
}

func TestWithFields_UsesFallbackWhenContextEmpty(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithFields(context.Background(), zap.New(core), zap.String("stage", "search"))
	FromContextOr(ctx, zap.NewNop()).Info("tagged")

	if logs.Len() != 1 || logs.All()[0].ContextMap()["stage"] != "search" {
		t.Errorf("expected fallback logger with stage field, got %v", logs.All())
	}
}
