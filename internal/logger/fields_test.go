package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  source  ", Value: "  hh  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "source" || fields[0].String != "hh" {
		t.Fatalf("unexpected source field: %+v", fields[0])
	}

	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	WithFields(logger, zap.String("foo", "bar")).Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if ctx := entries[0].ContextMap(); ctx["foo"] != "bar" {
		t.Fatalf("expected field to be bar, got %q", ctx["foo"])
	}

	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
	enriched.Info("another log")
}

func TestSourceFields(t *testing.T) {
	fields := SourceFields(" linkedin ", "apify")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != FieldSource || fields[0].String != "linkedin" {
		t.Fatalf("unexpected source field: %+v", fields[0])
	}
	if fields[1].Key != FieldSourceType || fields[1].String != "apify" {
		t.Fatalf("unexpected type field: %+v", fields[1])
	}
}

func TestWithRun(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithRun(zap.New(core), "run-1", "").Info("pipeline step")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldRunID] != "run-1" {
		t.Fatalf("expected run id, got %v", ctx[FieldRunID])
	}
	if _, ok := ctx[FieldModel]; ok {
		t.Fatalf("expected empty model to be omitted")
	}
}

func TestNew(t *testing.T) {
	for _, json := range []bool{true, false} {
		l, err := New(json, !json)
		if err != nil {
			t.Fatalf("new logger (json=%v): %v", json, err)
		}
		if ce := l.Check(zapcore.DebugLevel, "probe"); (ce != nil) == json {
			t.Fatalf("unexpected debug enablement for json=%v", json)
		}
	}
}
