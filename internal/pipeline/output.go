package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	// DescriptionLimit is the rune length job descriptions are cut to.
	DescriptionLimit = 300
	notSpecified     = "Not specified"
	postedLayout     = "2006-01-02"
)

// Job is one shortlisted posting as handed to the user.
type Job struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	Salary         string   `json:"salary"`
	MatchScore     float64  `json:"match_score"`
	URL            string   `json:"url"`
	EmploymentType string   `json:"employment_type"`
	Description    string   `json:"description"`
	PostingDate    string   `json:"posting_date"`
	IsRemote       bool     `json:"is_remote"`
	SkillMatches   []string `json:"skill_matches"`
	MissingSkills  []string `json:"missing_skills"`
	Sources        []string `json:"sources"`
}

type Diagnostics struct {
	RunID             string                `json:"run_id"`
	TotalCandidates   int                   `json:"total_candidates"`
	TotalAfterDedup   int                   `json:"total_after_dedup"`
	TotalMatches      int                   `json:"total_matches"`
	AverageMatchScore float64               `json:"average_match_score"`
	SourceErrors      []listing.SourceError `json:"source_errors"`
}

// Output is the persisted and printed artifact of a run.
type Output struct {
	Summary         string      `json:"summary"`
	Jobs            []Job       `json:"jobs"`
	Recommendations []string    `json:"recommendations"`
	Diagnostics     Diagnostics `json:"diagnostics"`
}

// Compose builds the Output of a run. When summarizer is nil or fails, the
// template summarizer is used instead.
func Compose(ctx context.Context, res *Result, summarizer ai.Summarizer, log *zap.Logger) Output {
	if log == nil {
		log = zap.NewNop()
	}

	req := ai.Request{Profile: res.Profile, Result: res.Ranked, Preferences: res.Preferences}

	var summary ai.Summary
	var err error
	if summarizer != nil {
		summary, err = summarizer.Summarize(ctx, req)
		if err != nil {
			log.Warn("summarizer failed, using template", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
	if summarizer == nil || err != nil {
		summary, _ = ai.TemplateSummarizer{}.Summarize(ctx, req)
	}

	recs := summary.Recommendations
	if recs == nil {
		recs = []string{}
	}

	return Output{
		Summary:         summary.Summary,
		Jobs:            Jobs(res.Ranked.Jobs),
		Recommendations: recs,
		Diagnostics:     diagnostics(res),
	}
}

// Jobs converts scored listings to their output shape.
func Jobs(scored []listing.Scored) []Job {
	jobs := make([]Job, 0, len(scored))
	for _, s := range scored {
		jobs = append(jobs, toJob(s))
	}
	return jobs
}

func toJob(s listing.Scored) Job {
	posted := notSpecified
	if s.PostedAt != nil {
		posted = s.PostedAt.UTC().Format(postedLayout)
	}

	srcs := make([]string, 0, len(s.MergedFrom))
	for _, p := range s.MergedFrom {
		srcs = append(srcs, p.String())
	}

	return Job{
		Title:          s.Title,
		Company:        orNotSpecified(s.Company),
		Location:       orNotSpecified(s.Location),
		Salary:         s.Salary.String(),
		MatchScore:     s.Score,
		URL:            s.URL,
		EmploymentType: orNotSpecified(s.EmploymentType),
		Description:    utils.Truncate(strings.TrimSpace(s.Description), DescriptionLimit),
		PostingDate:    posted,
		IsRemote:       s.IsRemote(),
		SkillMatches:   nonNil(s.Breakdown.MatchedSkills),
		MissingSkills:  nonNil(s.Breakdown.MissingSkills),
		Sources:        srcs,
	}
}

func diagnostics(res *Result) Diagnostics {
	errs := res.Ranked.SourceErrors
	if errs == nil {
		errs = []listing.SourceError{}
	}

	avg := 0.0
	if n := len(res.Ranked.Jobs); n > 0 {
		for _, j := range res.Ranked.Jobs {
			avg += j.Score
		}
		avg = math.Round(avg/float64(n)*1e4) / 1e4
	}

	return Diagnostics{
		RunID:             res.RunID,
		TotalCandidates:   res.Ranked.TotalCandidates,
		TotalAfterDedup:   res.Ranked.TotalAfterDedup,
		TotalMatches:      len(res.Ranked.Jobs),
		AverageMatchScore: avg,
		SourceErrors:      errs,
	}
}

// Report renders the shortlist as markdown.
func Report(out Output) string {
	if len(out.Jobs) == 0 {
		return "No jobs found matching your criteria."
	}

	var b strings.Builder
	b.WriteString("# Available Job Opportunities\n\n")
	for i, j := range out.Jobs {
		fmt.Fprintf(&b, "## %d. %s\n", i+1, j.Title)
		fmt.Fprintf(&b, "**Company:** %s\n", j.Company)
		fmt.Fprintf(&b, "**Location:** %s\n", j.Location)
		fmt.Fprintf(&b, "**Type:** %s\n", j.EmploymentType)
		fmt.Fprintf(&b, "**Salary:** %s\n", j.Salary)
		fmt.Fprintf(&b, "**Posted:** %s\n", j.PostingDate)
		fmt.Fprintf(&b, "**Match:** %.2f\n", j.MatchScore)
		fmt.Fprintf(&b, "**Description:** %s\n", j.Description)
		fmt.Fprintf(&b, "**Apply here:** %s\n\n", j.URL)
		b.WriteString("---\n\n")
	}
	return b.String()
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
