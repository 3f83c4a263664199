package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type payload struct {
	Name string `json:"name"`
}

func TestMemoryExpiresEntries(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	ctx := context.Background()
	if err := m.SetJSON(ctx, "k", payload{Name: "go"}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out payload
	ok, err := m.GetJSON(ctx, "k", &out)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if out.Name != "go" {
		t.Fatalf("unexpected payload: %+v", out)
	}

	now = now.Add(time.Minute)
	ok, err = m.GetJSON(ctx, "k", &out)
	if err != nil || ok {
		t.Fatalf("expected miss after ttl, got ok=%v err=%v", ok, err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped")
	}
}

func TestMemoryIgnoresNonPositiveTTL(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	if err := m.SetJSON(context.Background(), "k", payload{}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected nothing to be stored")
	}
}

func TestRedisBypassesWhenUnreachable(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	r := NewRedis(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, zap.New(core))

	ctx := context.Background()
	if err := r.SetJSON(ctx, "k", payload{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("expected bypass on set, got %v", err)
	}

	var out payload
	ok, err := r.GetJSON(ctx, "k", &out)
	if err != nil || ok {
		t.Fatalf("expected bypass miss, got ok=%v err=%v", ok, err)
	}

	if observed.FilterMessage("redis unavailable, bypassing cache").Len() != 1 {
		t.Fatalf("expected a single unavailability warning")
	}

	if err := r.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
