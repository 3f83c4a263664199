package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spigell/job-matcher/internal/textnorm"
)

var postedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

var relativePosted = regexp.MustCompile(`^(\d+)\+?\s*(minute|hour|day|week|month)s?\s+ago$`)

// ParsePostedAt understands absolute dates in the formats boards commonly use
// and relative ones such as "3 days ago" or "today", resolved against now.
// Unknown values yield nil.
func ParsePostedAt(raw string, now time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}

	lower := strings.ToLower(raw)
	lower = strings.TrimPrefix(lower, "posted ")
	lower = strings.TrimPrefix(lower, "active ")
	switch lower {
	case "today", "just posted", "just now":
		t := now.UTC().Truncate(24 * time.Hour)
		return &t
	case "yesterday":
		t := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)
		return &t
	}

	m := relativePosted.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var t time.Time
	switch m[2] {
	case "minute":
		t = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		t = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, -n, 0)
	}
	t = t.UTC().Truncate(time.Hour)
	return &t
}

// HTMLText flattens an HTML fragment into plain text.
func HTMLText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return textnorm.Clean(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return textnorm.Clean(fragment)
	}
	doc.Find("br, p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return textnorm.Clean(doc.Text())
}

// FallbackID derives a stable external id for boards that do not expose one.
func FallbackID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(parts, "\x1f"))))
	return hex.EncodeToString(sum[:8])
}
