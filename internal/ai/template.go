package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/job-matcher/internal/listing"
)

// TemplateSummarizer builds the summary from the ranked result alone. It is
// used when no model is configured or the model call fails.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(_ context.Context, req Request) (Summary, error) {
	res := req.Result
	jobs := res.Jobs

	if len(jobs) == 0 {
		summary := fmt.Sprintf("No matching jobs found among %d candidates.", res.TotalCandidates)
		recs := []string{
			"Broaden the keywords or job type preference.",
			"Try a wider location or remote search.",
		}
		if len(res.SourceErrors) > 0 {
			recs = append(recs, "Retry later: "+failedSources(res.SourceErrors)+" did not respond.")
		}
		return Summary{Summary: summary, Recommendations: recs}, nil
	}

	best := jobs[0]
	summary := fmt.Sprintf(
		"Found %d matching jobs from %d candidates (%d after removing duplicates). Best match: %s at %s with score %.2f.",
		len(jobs), res.TotalCandidates, res.TotalAfterDedup, best.Title, companyOrUnknown(best.Company), best.Score,
	)
	if len(res.SourceErrors) > 0 {
		summary += " Some sources failed: " + failedSources(res.SourceErrors) + "."
	}

	var recs []string
	recs = append(recs, fmt.Sprintf("Apply to %s at %s first.", best.Title, companyOrUnknown(best.Company)))
	if missing := topMissingSkills(jobs, 3); len(missing) > 0 {
		recs = append(recs, "Highlight or build experience in: "+strings.Join(missing, ", ")+".")
	}
	if len(jobs) > 1 {
		recs = append(recs, fmt.Sprintf("Review the other %d shortlisted postings and tailor your resume to each.", len(jobs)-1))
	}
	return Summary{Summary: summary, Recommendations: recs}, nil
}

func companyOrUnknown(company string) string {
	if strings.TrimSpace(company) == "" {
		return "an undisclosed company"
	}
	return company
}

func failedSources(errs []listing.SourceError) string {
	ids := make([]string, 0, len(errs))
	for _, e := range errs {
		ids = append(ids, e.SourceID)
	}
	return strings.Join(ids, ", ")
}

// topMissingSkills returns the skills most often missing across jobs, most
// frequent first, ties alphabetical.
func topMissingSkills(jobs []listing.Scored, n int) []string {
	counts := make(map[string]int)
	for _, j := range jobs {
		for _, s := range j.Breakdown.MissingSkills {
			counts[s]++
		}
	}
	skills := make([]string, 0, len(counts))
	for s := range counts {
		skills = append(skills, s)
	}
	sort.Slice(skills, func(i, j int) bool {
		if counts[skills[i]] != counts[skills[j]] {
			return counts[skills[i]] > counts[skills[j]]
		}
		return skills[i] < skills[j]
	})
	if len(skills) > n {
		skills = skills[:n]
	}
	return skills
}
