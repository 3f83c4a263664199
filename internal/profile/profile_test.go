package profile

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	years := 4.0
	p, err := Normalize(Extracted{
		Skills:          []string{" Python", "SQL", "python ", ""},
		Titles:          []string{"Data Scientist"},
		YearsExperience: &years,
	}, Preferences{
		Location: " remote ",
		Keywords: "ML, ml ,  deep   learning,",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := p.Skills(), []string{"python", "sql"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("skills: expected %v, got %v", want, got)
	}
	if got, want := p.Keywords(), []string{"deep learning", "ml"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keywords: expected %v, got %v", want, got)
	}
	if !p.WantsRemote() || p.Location() != Remote {
		t.Fatalf("expected remote sentinel, got %q", p.Location())
	}
	if p.JobType() != "full-time" {
		t.Fatalf("expected default job type, got %q", p.JobType())
	}
	if y, ok := p.YearsExperience(); !ok || y != 4 {
		t.Fatalf("unexpected years of experience: %v %v", y, ok)
	}

	years = 10
	if y, _ := p.YearsExperience(); y != 4 {
		t.Fatalf("expected profile to be detached from input, got %v", y)
	}

	skills := p.Skills()
	skills[0] = "mutated"
	if p.Skills()[0] != "python" {
		t.Fatalf("expected accessor to return a copy")
	}

	q := p.Query()
	if q.Text != "data scientist" || q.Location != "Remote" {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestNormalizeJobType(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"":           "full-time",
		"Full Time":  "full-time",
		"full_time":  "full-time",
		"FULLTIME":   "full-time",
		"part-time":  "part-time",
		"Contract":   "contract",
		"internship": "internship",
		"REMOTE":     "remote",
	}
	for input, want := range valid {
		p, err := Normalize(Extracted{}, Preferences{JobType: input})
		if err != nil {
			t.Fatalf("job type %q: unexpected error %v", input, err)
		}
		if p.JobType() != want {
			t.Fatalf("job type %q: expected %q, got %q", input, want, p.JobType())
		}
	}

	for _, input := range []string{"gig", "temporary", "full"} {
		_, err := Normalize(Extracted{}, Preferences{JobType: input})
		if !errors.Is(err, ErrInvalidPreference) {
			t.Fatalf("job type %q: expected ErrInvalidPreference, got %v", input, err)
		}
		var perr *InvalidPreferenceError
		if !errors.As(err, &perr) || perr.Field != "jobType" {
			t.Fatalf("job type %q: expected typed error, got %v", input, err)
		}
	}
}

func TestNormalizeRejectsNegativeExperience(t *testing.T) {
	t.Parallel()

	years := -1.0
	_, err := Normalize(Extracted{YearsExperience: &years}, Preferences{})
	if !errors.Is(err, ErrInvalidPreference) {
		t.Fatalf("expected ErrInvalidPreference, got %v", err)
	}
}

func TestHashIsStable(t *testing.T) {
	t.Parallel()

	a, _ := Normalize(Extracted{Skills: []string{"Go", "SQL"}}, Preferences{Location: "Berlin", Keywords: "k8s"})
	b, _ := Normalize(Extracted{Skills: []string{"sql", "go", "GO"}}, Preferences{Location: "Berlin", Keywords: " K8S "})
	c, _ := Normalize(Extracted{Skills: []string{"go"}}, Preferences{Location: "Berlin", Keywords: "k8s"})

	if a.Hash() != b.Hash() {
		t.Fatalf("expected equivalent profiles to hash equally")
	}
	if a.Hash() == c.Hash() {
		t.Fatalf("expected different profiles to hash differently")
	}
}
