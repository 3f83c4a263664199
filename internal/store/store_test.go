package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/pipeline"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func output(title string, candidates int) pipeline.Output {
	return pipeline.Output{
		Summary:         "summary",
		Jobs:            []pipeline.Job{{Title: title, MatchScore: 0.75}},
		Recommendations: []string{"apply"},
		Diagnostics: pipeline.Diagnostics{
			TotalCandidates: candidates,
			SourceErrors:    []listing.SourceError{{SourceID: "dice", Kind: listing.SourceTimeout}},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	s, _ := openStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	run := Run{ID: "run-1", CreatedAt: created, Location: "Remote", JobType: "full-time", Keywords: "ml", Output: output("Data Scientist", 7)}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(created) || got.Location != "Remote" || got.Keywords != "ml" {
		t.Fatalf("unexpected run %+v", got)
	}
	if len(got.Output.Jobs) != 1 || got.Output.Jobs[0].Title != "Data Scientist" {
		t.Fatalf("unexpected output %+v", got.Output)
	}
	if got.Output.Diagnostics.SourceErrors[0].Kind != listing.SourceTimeout {
		t.Fatalf("unexpected diagnostics %+v", got.Output.Diagnostics)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.SaveRun(ctx, Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour), Output: output(id, i)}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
}

func TestSaveRunDefaultsAndValidation(t *testing.T) {
	t.Parallel()

	s, _ := openStore(t)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if err := s.SaveRun(context.Background(), Run{}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if err := s.SaveRun(context.Background(), Run{ID: "x", Error: "all sources failed"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetRun(context.Background(), "x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(fixed) || got.Error != "all sources failed" {
		t.Fatalf("unexpected run %+v", got)
	}
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	t.Parallel()

	s, path := openStore(t)
	if err := s.SaveRun(context.Background(), Run{ID: "kept", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = s.Close()

	again, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	var v int
	if err := again.db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		t.Fatalf("user_version: %v", err)
	}
	if v != schemaVersion {
		t.Fatalf("expected version %d, got %d", schemaVersion, v)
	}
	if _, err := again.GetRun(context.Background(), "kept"); err != nil {
		t.Fatalf("expected run to survive reopen: %v", err)
	}
}
