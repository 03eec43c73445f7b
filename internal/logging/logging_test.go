package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONWritesSolveID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := ContextWithSolveID(context.Background(), "solve-123")
	log.With(String("strategy", "event")).Debug(ctx, "search started", Float("step", 3600))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "search started" {
		t.Fatalf("msg = %v", rec["msg"])
	}
	if rec["solve_id"] != "solve-123" {
		t.Fatalf("solve_id = %v", rec["solve_id"])
	}
	if rec["strategy"] != "event" {
		t.Fatalf("strategy = %v", rec["strategy"])
	}
	if rec["step"] != 3600.0 {
		t.Fatalf("step = %v", rec["step"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown", Err(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "boom") {
		t.Fatalf("expected warn line with error, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnsureSolveIDIsStable(t *testing.T) {
	ctx, id := EnsureSolveID(context.Background())
	if id == "" {
		t.Fatalf("expected generated solve id")
	}
	ctx2, id2 := EnsureSolveID(ctx)
	if id2 != id || SolveIDFromContext(ctx2) != id {
		t.Fatalf("solve id changed: %q -> %q", id, id2)
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("expected noop fallback")
	}
	stored := Noop().With(String("k", "v"))
	ctx := ContextWithLogger(context.Background(), stored)
	if FromContext(ctx, nil) != stored {
		t.Fatalf("expected stored logger")
	}
	if Err(nil).Value != "" {
		t.Fatalf("Err(nil) should be empty")
	}
}
