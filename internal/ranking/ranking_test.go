package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/spigell/job-matcher/internal/listing"
)

func scored(id string, score, completeness float64, posted *time.Time) listing.Scored {
	return listing.Scored{
		Canonical: listing.Canonical{
			Record:       listing.Record{SourceID: "src", ExternalID: id, PostedAt: posted},
			Completeness: completeness,
		},
		Score: score,
	}
}

func ids(list []listing.Scored) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ExternalID)
	}
	return out
}

func TestRankKeepsTopFive(t *testing.T) {
	t.Parallel()

	var in []listing.Scored
	for i, score := range []float64{0.31, 0.92, 0.15, 0.77, 0.64, 0.48, 0.83} {
		in = append(in, scored(fmt.Sprintf("job-%d", i), score, 0.5, nil))
	}

	got := Rank(in, DefaultTop)
	want := []string{"job-1", "job-6", "job-3", "job-4", "job-5"}
	if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("result not sorted at %d", i)
		}
	}
	if in[0].ExternalID != "job-0" {
		t.Fatalf("input was reordered")
	}
}

func TestRankTieBreaks(t *testing.T) {
	t.Parallel()

	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	in := []listing.Scored{
		scored("z-undated", 0.7, 0.5, nil),
		scored("y-late", 0.7, 0.5, &late),
		scored("x-early", 0.7, 0.5, &early),
		scored("w-complete", 0.7, 0.9, nil),
		scored("b-same", 0.7, 0.5, &early),
		scored("top", 0.8, 0.1, nil),
	}

	got := ids(Rank(in, 10))
	want := []string{"top", "w-complete", "b-same", "x-early", "y-late", "z-undated"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRankIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := scored("a", 0.5, 0.5, nil)
	b := scored("b", 0.5, 0.5, nil)
	c := scored("a", 0.5, 0.5, nil)
	c.SourceID = "other"

	first := ids(Rank([]listing.Scored{a, b, c}, 0))
	second := ids(Rank([]listing.Scored{c, b, a}, 0))
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("order depends on input: %v vs %v", first, second)
	}
}

func TestRankFewerThanTop(t *testing.T) {
	t.Parallel()

	if got := Rank(nil, DefaultTop); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	got := Rank([]listing.Scored{scored("only", 0.1, 0, nil)}, DefaultTop)
	if len(got) != 1 {
		t.Fatalf("expected single result, got %d", len(got))
	}
}
