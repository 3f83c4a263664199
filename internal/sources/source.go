// Package sources defines the job board adapter contract and the pieces every
// adapter shares: the error taxonomy, rate limiting, response caching and
// construction from configuration.
package sources

import (
	"context"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
)

// Source wraps one external job board.
//
// Fetch returns the full batch or an error; partial batches are never
// returned. Errors are *Error values classified as timeout, unavailable or
// malformed data.
type Source interface {
	ID() string
	Fetch(ctx context.Context, p profile.Canonical, limit int) ([]listing.Record, error)
}
