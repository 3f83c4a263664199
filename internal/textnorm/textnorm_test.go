package textnorm

import (
	"math"
	"reflect"
	"testing"
)

func TestTokensKeepsTechSuffixes(t *testing.T) {
	t.Parallel()

	got := Tokens("C++, C# and Node.js developer.")
	want := []string{"c++", "c#", "and", "node.js", "developer"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect string
	}{
		{input: "Sr. Data Scientist", expect: "senior data scientist"},
		{input: "Senior Data Scientist, ML", expect: "senior data scientist ml"},
		{input: "Jr Dev", expect: "junior developer"},
		{input: "  Engineering   Mgr ", expect: "engineering manager"},
	}

	for _, tt := range tests {
		if got := Title(tt.input); got != tt.expect {
			t.Fatalf("Title(%q) = %q, want %q", tt.input, got, tt.expect)
		}
	}
}

func TestCompany(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"Acme, Inc.", "ACME", "acme llc", "Acme Corp."} {
		if got := Company(input); got != "acme" {
			t.Fatalf("Company(%q) = %q, want acme", input, got)
		}
	}

	if got := Company("Co"); got != "co" {
		t.Fatalf("expected single token name to be kept, got %q", got)
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()

	got := Location("Location: Berlin,  Berlin , Germany")
	want := []string{"berlin", "germany"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	if d := Levenshtein("kitten", "sitting"); d != 3 {
		t.Fatalf("expected distance 3, got %d", d)
	}

	if r := EditRatio("", ""); r != 1 {
		t.Fatalf("expected identical empty strings, got %v", r)
	}

	sim := TitleSimilarity("Sr. Data Scientist", "Senior Data Scientist, ML")
	if math.Abs(sim-0.875) > 1e-9 {
		t.Fatalf("expected 0.875, got %v", sim)
	}

	if sim := TitleSimilarity("Backend Engineer", "Product Designer"); sim > 0.5 {
		t.Fatalf("expected unrelated titles to be dissimilar, got %v", sim)
	}
}

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	a := CanonicalURL("https://www.example.com/jobs/42/?utm_source=x&ref=1#apply")
	b := CanonicalURL("http://example.com/jobs/42?ref=1")
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}

	li := CanonicalURL("https://www.linkedin.com/jobs/view/?currentJobId=7&trk=abc&position=1")
	if li != "linkedin.com/jobs/view?currentJobId=7" {
		t.Fatalf("unexpected linkedin key %q", li)
	}
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	text := Tokens("Experience with machine learning and SQL required")
	if !ContainsPhrase(text, "Machine Learning") {
		t.Fatalf("expected phrase to match")
	}
	if ContainsPhrase(text, "learning machine") {
		t.Fatalf("expected word order to matter")
	}
	if ContainsPhrase(text, "") {
		t.Fatalf("expected empty phrase not to match")
	}
}
