// Package scoring computes how well a canonical listing fits a profile.
//
// The score is a weighted sum of five sub-scores in [0, 1]: skills, title,
// location, job type and keywords. Scoring is a pure function of the profile
// and the listing; every value is rounded to six decimals so repeated runs
// produce byte-identical output.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/textnorm"
)

// neutral is the sub-score used when the profile has nothing to compare.
const neutral = 0.5

var ErrInvalidWeights = errors.New("invalid scoring weights")

type Weights struct {
	Skills   float64 `mapstructure:"skills" json:"skills"`
	Title    float64 `mapstructure:"title" json:"title"`
	Location float64 `mapstructure:"location" json:"location"`
	JobType  float64 `mapstructure:"job-type" json:"job_type"`
	Keywords float64 `mapstructure:"keywords" json:"keywords"`
}

func DefaultWeights() Weights {
	return Weights{Skills: 0.35, Title: 0.25, Location: 0.15, JobType: 0.10, Keywords: 0.15}
}

func (w Weights) Validate() error {
	all := []float64{w.Skills, w.Title, w.Location, w.JobType, w.Keywords}
	sum := 0.0
	for _, v := range all {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %v", ErrInvalidWeights, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

type Scorer struct {
	weights Weights
}

func New(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// ScoreAll scores every listing, keeping input order.
func (s *Scorer) ScoreAll(p profile.Canonical, listings []listing.Canonical) []listing.Scored {
	out := make([]listing.Scored, 0, len(listings))
	for _, c := range listings {
		out = append(out, s.Score(p, c))
	}
	return out
}

func (s *Scorer) Score(p profile.Canonical, c listing.Canonical) listing.Scored {
	text := textnorm.Tokens(c.Title + " " + c.Description)

	skills, matched, missing := skillScore(p.Skills(), text)
	b := listing.Breakdown{
		Skills:        factor(skills, s.weights.Skills),
		Title:         factor(titleScore(p.Titles(), c.Title), s.weights.Title),
		Location:      factor(locationScore(p, c.Record), s.weights.Location),
		JobType:       factor(jobTypeScore(p.JobType(), c.Record), s.weights.JobType),
		Keywords:      factor(keywordScore(p.Keywords(), textnorm.Tokens(c.Title+" "+c.Description+" "+c.Company)), s.weights.Keywords),
		MatchedSkills: matched,
		MissingSkills: missing,
	}

	total := b.Skills.Value*b.Skills.Weight +
		b.Title.Value*b.Title.Weight +
		b.Location.Value*b.Location.Weight +
		b.JobType.Value*b.JobType.Weight +
		b.Keywords.Value*b.Keywords.Weight

	return listing.Scored{
		Canonical: c,
		Score:     round(math.Min(1, math.Max(0, total))),
		Breakdown: b,
	}
}

func factor(value, weight float64) listing.Factor {
	value = round(value)
	return listing.Factor{Value: value, Weight: weight, Contribution: round(value * weight)}
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// skillScore is the fraction of profile skills found as phrases in the
// listing text.
func skillScore(skills, text []string) (float64, []string, []string) {
	if len(skills) == 0 {
		return neutral, nil, nil
	}
	var matched, missing []string
	for _, skill := range skills {
		if textnorm.ContainsPhrase(text, skill) {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}
	return float64(len(matched)) / float64(len(skills)), matched, missing
}

// titleScore is the best similarity between any profile title and the
// listing title. A listing title containing every word of a profile title is
// a full match.
func titleScore(titles []string, title string) float64 {
	if len(titles) == 0 {
		return neutral
	}
	listingTokens := textnorm.TokenSet(textnorm.Title(title))
	best := 0.0
	for _, t := range titles {
		sim := textnorm.TitleSimilarity(t, title)
		if c := containment(textnorm.TokenSet(textnorm.Title(t)), listingTokens); c > sim {
			sim = c
		}
		best = max(best, sim)
	}
	return best
}

func containment(want, have map[string]bool) float64 {
	if len(want) == 0 {
		return 0
	}
	n := 0
	for tok := range want {
		if have[tok] {
			n++
		}
	}
	return float64(n) / float64(len(want))
}

func locationScore(p profile.Canonical, r listing.Record) float64 {
	if p.WantsRemote() {
		if r.IsRemote() {
			return 1
		}
		return 0
	}

	pref := textnorm.Location(p.Location())
	if len(pref) == 0 {
		return 1
	}
	have := textnorm.Location(r.Location)
	switch {
	case len(have) == 0:
	case pref[0] == have[0]:
		return 1
	case len(pref) == 1 && slices.Contains(have, pref[0]):
		// the preference names the region the listing is in
		return 1
	case pref[len(pref)-1] == have[len(have)-1]:
		return 0.5
	}
	if r.IsRemote() {
		return 0.5
	}
	return 0
}

func jobTypeScore(pref string, r listing.Record) float64 {
	if pref == listing.Remote {
		if r.IsRemote() {
			return 1
		}
		return 0
	}
	for _, part := range strings.FieldsFunc(r.EmploymentType, isListSep) {
		if listing.NormalizeEmploymentType(part) == pref {
			return 1
		}
	}
	return 0
}

// keywordScore is the fraction of keywords present in the listing text.
func keywordScore(keywords, text []string) float64 {
	if len(keywords) == 0 {
		return neutral
	}
	n := 0
	for _, kw := range keywords {
		if textnorm.ContainsPhrase(text, kw) {
			n++
		}
	}
	return float64(n) / float64(len(keywords))
}

func isListSep(c rune) bool {
	return c == ',' || c == '/' || c == ';'
}
