// Package ranking orders scored listings and selects the shortlist.
package ranking

import (
	"slices"
	"strings"

	"github.com/spigell/job-matcher/internal/listing"
)

// DefaultTop is the shortlist size.
const DefaultTop = 5

// Rank sorts by score descending with a fixed tie-break (completeness
// descending, earlier postedAt with unknown dates last, externalId, sourceId)
// and keeps the first n. n <= 0 means DefaultTop. The input is not modified.
func Rank(scored []listing.Scored, n int) []listing.Scored {
	if n <= 0 {
		n = DefaultTop
	}
	out := slices.Clone(scored)
	slices.SortStableFunc(out, Compare)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Compare reports the ranking order of two listings.
func Compare(a, b listing.Scored) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if a.Completeness != b.Completeness {
		if a.Completeness > b.Completeness {
			return -1
		}
		return 1
	}
	switch {
	case a.PostedAt != nil && b.PostedAt == nil:
		return -1
	case a.PostedAt == nil && b.PostedAt != nil:
		return 1
	case a.PostedAt != nil && !a.PostedAt.Equal(*b.PostedAt):
		return a.PostedAt.Compare(*b.PostedAt)
	}
	if c := strings.Compare(a.ExternalID, b.ExternalID); c != 0 {
		return c
	}
	return strings.Compare(a.SourceID, b.SourceID)
}
