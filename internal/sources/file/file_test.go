package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/sources"
)

const fixture = `
- external_id: j1
  title: Backend Engineer
  company: Acme Inc
  location: Remote
  salary:
    min: 100000
    max: 130000
    currency: USD
  employment_type: full-time
  url: https://example.com/j1
  posted_at: 2024-05-01T00:00:00Z
- title: Data Scientist
  company: Globex
- title: "   "
  company: Nobody
`

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFetchReadsFixture(t *testing.T) {
	t.Parallel()

	src := New("demo", Options{Path: writeFixture(t, fixture)}, nil)
	fixed := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	records, err := src.Fetch(context.Background(), profile.Canonical{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.SourceID != "demo" || first.ExternalID != "j1" {
		t.Fatalf("unexpected provenance: %+v", first.Provenance())
	}
	if first.Salary.String() != "100000-130000 USD" {
		t.Fatalf("unexpected salary %q", first.Salary.String())
	}
	if first.PostedAt == nil || !first.PostedAt.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted at %v", first.PostedAt)
	}
	if !first.FetchedAt.Equal(fixed) {
		t.Fatalf("unexpected fetched at %v", first.FetchedAt)
	}
	if records[1].ExternalID == "" {
		t.Fatalf("expected fallback id for record without one")
	}
}

func TestFetchHonoursLimit(t *testing.T) {
	t.Parallel()

	src := New("demo", Options{Path: writeFixture(t, fixture)}, nil)
	records, err := src.Fetch(context.Background(), profile.Canonical{}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   Options
		expect error
	}{
		{name: "missing file", opts: Options{Path: filepath.Join(t.TempDir(), "nope.yaml")}, expect: sources.ErrUnavailable},
		{name: "bad yaml", opts: Options{Path: writeFixture(t, "title: [")}, expect: sources.ErrMalformedData},
		{name: "configured failure", opts: Options{Fail: "unavailable"}, expect: sources.ErrUnavailable},
		{name: "configured timeout", opts: Options{Fail: "timeout"}, expect: sources.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New("demo", tt.opts, nil).Fetch(context.Background(), profile.Canonical{}, 10)
			if !errors.Is(err, tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, err)
			}
		})
	}
}

func TestFetchDelayRespectsContext(t *testing.T) {
	t.Parallel()

	src := New("slow", Options{Path: writeFixture(t, fixture), Delay: time.Minute}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := src.Fetch(ctx, profile.Canonical{}, 10)
	if !errors.Is(err, sources.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("fetch ignored context cancellation")
	}
}

func TestFactoryValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := Factory(sources.Config{ID: "demo", Type: Type}, sources.Deps{}); err == nil {
		t.Fatalf("expected error without path")
	}
	if _, err := Factory(sources.Config{ID: "demo", Type: Type, Options: map[string]any{"fail": "boom"}}, sources.Deps{}); err == nil {
		t.Fatalf("expected error for unknown failure kind")
	}
	src, err := Factory(sources.Config{ID: "demo", Type: Type, Options: map[string]any{"path": "jobs.yaml", "delay": "2s"}}, sources.Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := src.(*Source).opts.Delay; got != 2*time.Second {
		t.Fatalf("unexpected delay %v", got)
	}
}
