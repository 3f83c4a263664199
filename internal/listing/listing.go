package listing

import (
	"sort"
	"strings"
	"time"
)

// Record is one posting as seen from one source. Records are values: merging
// produces a new Record, nothing mutates a fetched one.
type Record struct {
	SourceID       string     `json:"source_id" yaml:"source_id"`
	ExternalID     string     `json:"external_id" yaml:"external_id"`
	Title          string     `json:"title" yaml:"title"`
	Company        string     `json:"company" yaml:"company"`
	Location       string     `json:"location" yaml:"location"`
	Salary         Salary     `json:"salary" yaml:"salary"`
	EmploymentType string     `json:"employment_type" yaml:"employment_type"`
	Description    string     `json:"description" yaml:"description"`
	URL            string     `json:"url" yaml:"url"`
	Remote         bool       `json:"remote" yaml:"remote"`
	PostedAt       *time.Time `json:"posted_at,omitempty" yaml:"posted_at,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at" yaml:"fetched_at"`
}

// Provenance identifies a source record.
type Provenance struct {
	SourceID   string `json:"source_id"`
	ExternalID string `json:"external_id"`
}

func (p Provenance) String() string {
	return p.SourceID + ":" + p.ExternalID
}

func (r Record) Provenance() Provenance {
	return Provenance{SourceID: r.SourceID, ExternalID: r.ExternalID}
}

// IsRemote reports whether the record advertises remote work either by flag,
// by employment type or by its location text.
func (r Record) IsRemote() bool {
	if r.Remote {
		return true
	}
	if NormalizeEmploymentType(r.EmploymentType) == Remote {
		return true
	}
	loc := strings.ToLower(r.Location)
	return strings.Contains(loc, "remote") || strings.Contains(loc, "anywhere")
}

// Canonical is one real-world posting after deduplication.
type Canonical struct {
	Record
	MergedFrom   []Provenance `json:"merged_from"`
	Completeness float64      `json:"completeness"`
}

// NewCanonical wraps a single record.
func NewCanonical(r Record) Canonical {
	return Canonical{
		Record:       r,
		MergedFrom:   []Provenance{r.Provenance()},
		Completeness: Completeness(r),
	}
}

// SortProvenance orders provenance entries by source then external id.
func SortProvenance(p []Provenance) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].SourceID != p[j].SourceID {
			return p[i].SourceID < p[j].SourceID
		}
		return p[i].ExternalID < p[j].ExternalID
	})
}

// Factor is one weighted term of a match score.
type Factor struct {
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Breakdown keeps the per-factor contributions of a match score.
type Breakdown struct {
	Skills        Factor   `json:"skills"`
	Title         Factor   `json:"title"`
	Location      Factor   `json:"location"`
	JobType       Factor   `json:"job_type"`
	Keywords      Factor   `json:"keywords"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
	MissingSkills []string `json:"missing_skills,omitempty"`
}

// Scored is a canonical listing with its match score.
type Scored struct {
	Canonical
	Score     float64   `json:"match_score"`
	Breakdown Breakdown `json:"score_breakdown"`
}

// ErrorKind classifies a per-source failure.
type ErrorKind string

const (
	SourceTimeout       ErrorKind = "SourceTimeout"
	SourceUnavailable   ErrorKind = "SourceUnavailable"
	SourceMalformedData ErrorKind = "SourceMalformedData"
)

// SourceError is a diagnostic entry for a source that did not contribute.
type SourceError struct {
	SourceID string    `json:"source_id"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message,omitempty"`
}

// RankedResult is the final product of a pipeline run.
type RankedResult struct {
	Jobs            []Scored      `json:"jobs"`
	TotalCandidates int           `json:"total_candidates"`
	TotalAfterDedup int           `json:"total_after_dedup"`
	SourceErrors    []SourceError `json:"source_errors"`
}
