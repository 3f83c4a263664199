package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/textnorm"
)

// Remote is the location sentinel for "any remote posting".
const Remote = "REMOTE"

// ErrInvalidPreference is returned for preferences that cannot be normalized.
var ErrInvalidPreference = errors.New("invalid preference")

// InvalidPreferenceError names the offending preference.
type InvalidPreferenceError struct {
	Field string
	Value string
}

func (e *InvalidPreferenceError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrInvalidPreference, e.Field, e.Value)
}

func (e *InvalidPreferenceError) Is(target error) bool {
	return target == ErrInvalidPreference
}

// JobTypes lists the accepted job type preferences.
var JobTypes = []string{listing.FullTime, listing.PartTime, listing.Contract, listing.Internship, listing.Remote}

// Extracted is the structured resume profile produced by the extraction
// collaborator. Any field may be empty.
type Extracted struct {
	Skills          []string `json:"skills" yaml:"skills"`
	Titles          []string `json:"titles" yaml:"titles"`
	YearsExperience *float64 `json:"yearsExperience" yaml:"years-experience"`
}

// Preferences are the raw preference strings of a run.
type Preferences struct {
	Resume    string `mapstructure:"resume"`
	Location  string `mapstructure:"location"`
	JobType   string `mapstructure:"job-type"`
	Keywords  string `mapstructure:"keywords"`
	ModelName string `mapstructure:"model-name"`
}

// Canonical is the normalized query and scoring profile. It is built once per
// run and never changes afterwards.
type Canonical struct {
	skills          []string
	titles          []string
	keywords        []string
	yearsExperience *float64
	location        string
	jobType         string
}

// Normalize builds the canonical profile.
func Normalize(ex Extracted, prefs Preferences) (Canonical, error) {
	jobType, err := normalizeJobType(prefs.JobType)
	if err != nil {
		return Canonical{}, err
	}

	var years *float64
	if ex.YearsExperience != nil {
		if *ex.YearsExperience < 0 {
			return Canonical{}, &InvalidPreferenceError{Field: "yearsExperience", Value: fmt.Sprint(*ex.YearsExperience)}
		}
		v := *ex.YearsExperience
		years = &v
	}

	return Canonical{
		skills:          textnorm.Set(ex.Skills),
		titles:          textnorm.Set(ex.Titles),
		keywords:        textnorm.Set(strings.Split(prefs.Keywords, ",")),
		yearsExperience: years,
		location:        normalizeLocation(prefs.Location),
		jobType:         jobType,
	}, nil
}

func normalizeJobType(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return listing.FullTime, nil
	}
	key = strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
	if key == "fulltime" {
		key = listing.FullTime
	}
	if key == "parttime" {
		key = listing.PartTime
	}
	if slices.Contains(JobTypes, key) {
		return key, nil
	}
	return "", &InvalidPreferenceError{Field: "jobType", Value: raw}
}

func normalizeLocation(raw string) string {
	loc := textnorm.Clean(raw)
	if strings.EqualFold(loc, "remote") {
		return Remote
	}
	return loc
}

func (c Canonical) Skills() []string   { return slices.Clone(c.skills) }
func (c Canonical) Titles() []string   { return slices.Clone(c.titles) }
func (c Canonical) Keywords() []string { return slices.Clone(c.keywords) }
func (c Canonical) Location() string   { return c.location }
func (c Canonical) JobType() string    { return c.jobType }
func (c Canonical) WantsRemote() bool  { return c.location == Remote }

// YearsExperience returns the experience and whether it is known.
func (c Canonical) YearsExperience() (float64, bool) {
	if c.yearsExperience == nil {
		return 0, false
	}
	return *c.yearsExperience, true
}

// Query is what adapters send to the boards.
type Query struct {
	Text     string `json:"query"`
	Location string `json:"location"`
}

// Query picks the search text from titles, then keywords, then skills.
func (c Canonical) Query() Query {
	q := Query{Location: c.location}
	if c.WantsRemote() {
		q.Location = "Remote"
	}
	switch {
	case len(c.titles) > 0:
		q.Text = c.titles[0]
	case len(c.keywords) > 0:
		q.Text = strings.Join(c.keywords, " ")
	case len(c.skills) > 0:
		q.Text = c.skills[0]
	}
	return q
}

type snapshot struct {
	Skills          []string `json:"skills"`
	Titles          []string `json:"titles"`
	Keywords        []string `json:"keywords"`
	YearsExperience *float64 `json:"yearsExperience"`
	Location        string   `json:"location"`
	JobType         string   `json:"jobType"`
}

func (c Canonical) snapshot() snapshot {
	return snapshot{
		Skills:          c.Skills(),
		Titles:          c.Titles(),
		Keywords:        c.Keywords(),
		YearsExperience: c.yearsExperience,
		Location:        c.location,
		JobType:         c.jobType,
	}
}

// MarshalJSON exposes the profile for logs and run history.
func (c Canonical) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.snapshot())
}

// Hash is a stable digest of the profile, used as a cache key component.
func (c Canonical) Hash() string {
	// fields are sorted sets, so the encoding is stable
	b, _ := json.Marshal(c.snapshot())
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
