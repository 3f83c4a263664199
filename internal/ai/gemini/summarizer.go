package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/utils"
)

//go:embed summary_prompt.md
var summaryPrompt string

// Summarizer asks the model for the summary and recommendations of a run.
type Summarizer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewSummarizer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Summarizer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

type promptJob struct {
	Rank           int      `json:"rank"`
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	EmploymentType string   `json:"employment_type"`
	Salary         string   `json:"salary"`
	MatchScore     float64  `json:"match_score"`
	MatchedSkills  []string `json:"skill_matches,omitempty"`
	MissingSkills  []string `json:"missing_skills,omitempty"`
}

func (s *Summarizer) Summarize(ctx context.Context, req ai.Request) (ai.Summary, error) {
	message, err := buildSummaryMessage(req)
	if err != nil {
		return ai.Summary{}, err
	}

	s.logger.Debug("gemini summary request",
		zap.Int("jobs", len(req.Result.Jobs)),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, summaryPrompt, message)
	if err != nil {
		return ai.Summary{}, err
	}

	s.logger.Debug("gemini summary response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return parseSummary(raw)
}

func buildSummaryMessage(req ai.Request) (string, error) {
	jobs := make([]promptJob, 0, len(req.Result.Jobs))
	for i, j := range req.Result.Jobs {
		jobs = append(jobs, promptJob{
			Rank:           i + 1,
			Title:          j.Title,
			Company:        j.Company,
			Location:       j.Location,
			EmploymentType: j.EmploymentType,
			Salary:         j.Salary.String(),
			MatchScore:     j.Score,
			MatchedSkills:  j.Breakdown.MatchedSkills,
			MissingSkills:  j.Breakdown.MissingSkills,
		})
	}

	profileJSON, err := json.Marshal(req.Profile)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	jobsJSON, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal jobs: %w", err)
	}

	var b strings.Builder
	b.WriteString("[Preferences]\n")
	fmt.Fprintf(&b, "- Location: %s\n", sanitizeLine(req.Preferences.Location))
	fmt.Fprintf(&b, "- Job type: %s\n", sanitizeLine(req.Preferences.JobType))
	fmt.Fprintf(&b, "- Keywords: %s\n", sanitizeLine(req.Preferences.Keywords))
	b.WriteString("\n[Profile]\n")
	b.Write(profileJSON)
	fmt.Fprintf(&b, "\n\n[Search]\n- Candidates: %d\n- After deduplication: %d\n- Failed sources: %d\n",
		req.Result.TotalCandidates, req.Result.TotalAfterDedup, len(req.Result.SourceErrors))
	b.WriteString("\n[Shortlist]\n")
	b.Write(jobsJSON)
	return b.String(), nil
}

func parseSummary(raw string) (ai.Summary, error) {
	data, err := parseObject(raw)
	if err != nil {
		return ai.Summary{}, err
	}

	out := ai.Summary{
		Summary:         coerceString(data["summary"]),
		Recommendations: coerceStrings(data["recommendations"]),
	}
	if out.Summary == "" {
		return ai.Summary{}, errors.New("gemini response has no summary")
	}
	if out.Recommendations == nil {
		out.Recommendations = coerceStrings(data["recommended_actions"])
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return out, nil
}
