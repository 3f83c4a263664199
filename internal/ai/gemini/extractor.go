package gemini

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed extract_prompt.md
var extractPrompt string

const defaultMaxLogLength = 200

// Extractor reads skills, titles and experience out of resume text.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{generator: generator, logger: logger, maxLogLen: maxLogLength}
}

// Extract returns an empty profile for an empty resume without calling the model.
func (e *Extractor) Extract(ctx context.Context, resume string) (profile.Extracted, error) {
	resume = strings.TrimSpace(resume)
	if resume == "" {
		e.logger.Info("empty resume, skipping profile extraction")
		return profile.Extracted{}, nil
	}

	e.logger.Debug("gemini extract request",
		zap.Int("resume_length", utf8.RuneCountInString(resume)),
		zap.String("resume_preview", utils.TruncateForLog(resume, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, extractPrompt, "Resume:\n"+resume)
	if err != nil {
		return profile.Extracted{}, err
	}

	e.logger.Debug("gemini extract response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return parseExtracted(raw)
}

func parseExtracted(raw string) (profile.Extracted, error) {
	data, err := parseObject(raw)
	if err != nil {
		return profile.Extracted{}, err
	}

	ex := profile.Extracted{
		Skills: coerceStrings(data["skills"]),
		Titles: coerceStrings(data["titles"]),
	}

	years, ok := data["yearsExperience"]
	if !ok {
		years = data["years_experience"]
	}
	if v := coerceFloat(years); !math.IsNaN(v) {
		ex.YearsExperience = &v
	}
	return ex, nil
}
