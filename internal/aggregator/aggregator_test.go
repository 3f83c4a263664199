package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/sources"
)

type stubSource struct {
	id      string
	records []listing.Record
	err     error
	delay   time.Duration
	// block ignores the context and never returns before release is closed.
	block   bool
	release chan struct{}
}

func (s *stubSource) ID() string { return s.id }

func (s *stubSource) Fetch(ctx context.Context, _ profile.Canonical, _ int) ([]listing.Record, error) {
	if s.block {
		<-s.release
		return s.records, nil
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.records, s.err
}

func records(source string, ids ...string) []listing.Record {
	out := make([]listing.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, listing.Record{SourceID: source, ExternalID: id, Title: "Job " + id})
	}
	return out
}

func TestCollectIsolatesFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	agg := New([]sources.Source{
		&stubSource{id: "slow", records: records("slow", "s1"), delay: 20 * time.Millisecond},
		&stubSource{id: "broken", err: sources.Unavailable("broken", errors.New("503"))},
		&stubSource{id: "fast", records: records("fast", "f1", "f2")},
	}, Options{PerSourceTimeout: time.Second, Deadline: 2 * time.Second}, zap.New(core))

	pool, err := agg.Collect(context.Background(), profile.Canonical{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pool.Succeeded != 2 {
		t.Fatalf("expected 2 successful sources, got %d", pool.Succeeded)
	}
	// registration order, not completion order
	want := []string{"s1", "f1", "f2"}
	if len(pool.Records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(pool.Records))
	}
	for i, id := range want {
		if pool.Records[i].ExternalID != id {
			t.Fatalf("record %d: expected %s, got %s", i, id, pool.Records[i].ExternalID)
		}
	}
	if len(pool.Errors) != 1 || pool.Errors[0].SourceID != "broken" || pool.Errors[0].Kind != listing.SourceUnavailable {
		t.Fatalf("unexpected source errors: %+v", pool.Errors)
	}
	if logs.FilterMessage("source failed").Len() != 1 {
		t.Fatalf("expected one failure log entry")
	}
}

func TestCollectAllTimeoutsFail(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	agg := New([]sources.Source{
		&stubSource{id: "a", delay: time.Minute},
		&stubSource{id: "b", block: true, release: release, records: records("b", "b1")},
	}, Options{PerSourceTimeout: time.Minute, Deadline: 30 * time.Millisecond}, nil)

	start := time.Now()
	pool, err := agg.Collect(context.Background(), profile.Canonical{})
	if time.Since(start) > 5*time.Second {
		t.Fatalf("collect did not honour the global deadline")
	}

	if !errors.Is(err, ErrAggregationFailed) {
		t.Fatalf("expected aggregation failure, got %v", err)
	}
	var failed *FailedError
	if !errors.As(err, &failed) || len(failed.Errors) != 2 {
		t.Fatalf("expected both sources in the failure, got %v", err)
	}
	if len(pool.Records) != 0 {
		t.Fatalf("expected no candidates, got %d", len(pool.Records))
	}
	for _, se := range pool.Errors {
		if se.Kind != listing.SourceTimeout {
			t.Fatalf("expected timeout for %s, got %s", se.SourceID, se.Kind)
		}
	}
}

func TestCollectEmptyBatchesAreNotFailures(t *testing.T) {
	t.Parallel()

	agg := New([]sources.Source{&stubSource{id: "a"}, &stubSource{id: "b"}}, Options{}, nil)
	pool, err := agg.Collect(context.Background(), profile.Canonical{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Succeeded != 2 || len(pool.Records) != 0 {
		t.Fatalf("unexpected pool: %+v", pool)
	}
}

func TestCollectStampsProvenanceAndLimit(t *testing.T) {
	t.Parallel()

	raw := []listing.Record{
		{SourceID: "wrong", ExternalID: "1", Title: "One"},
		{Title: "Two", Company: "Acme"},
		{ExternalID: "3", Title: "Three"},
	}
	agg := New([]sources.Source{&stubSource{id: "board", records: raw}}, Options{Limit: 2}, nil)

	pool, err := agg.Collect(context.Background(), profile.Canonical{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.Records) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(pool.Records))
	}
	for _, r := range pool.Records {
		if r.SourceID != "board" || r.ExternalID == "" {
			t.Fatalf("unexpected provenance %+v", r.Provenance())
		}
	}
	if raw[0].SourceID != "wrong" {
		t.Fatalf("source batch was mutated")
	}
}

func TestCollectWithoutSources(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Options{}, nil).Collect(context.Background(), profile.Canonical{})
	if !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestFailedErrorMessage(t *testing.T) {
	t.Parallel()

	err := &FailedError{Errors: []listing.SourceError{{SourceID: "a", Kind: listing.SourceTimeout}}}
	want := fmt.Sprintf("%s (a: SourceTimeout)", ErrAggregationFailed)
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
