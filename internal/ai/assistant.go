package ai

import (
	"context"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
)

// ProfileExtractor turns free resume text into a structured profile.
type ProfileExtractor interface {
	Extract(ctx context.Context, resume string) (profile.Extracted, error)
}

// Request is what a Summarizer gets to describe a run.
type Request struct {
	Profile     profile.Canonical
	Result      listing.RankedResult
	Preferences profile.Preferences
}

type Summary struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// Summarizer writes the summary and recommendations of a ranked result.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (Summary, error)
}
