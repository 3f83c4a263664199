// Package dedup merges listing records that describe the same real-world
// posting.
//
// Records are compared only inside buckets keyed by normalized company (or
// the first title token when the company is unknown) and by canonical URL.
// Matching pairs are joined with a union-find, clusters are merged, and the
// procedure repeats until a pass makes no merge, so running it again on its
// own output changes nothing.
package dedup

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/textnorm"
)

const (
	DefaultThreshold      = 0.85
	DefaultTitleWeight    = 0.5
	DefaultCompanyWeight  = 0.35
	DefaultLocationWeight = 0.15

	// missingLocation is the location similarity when either side has none.
	missingLocation = 0.5
)

var ErrInvalidOptions = errors.New("invalid dedup options")

type Options struct {
	Threshold      float64 `mapstructure:"threshold"`
	TitleWeight    float64 `mapstructure:"title-weight"`
	CompanyWeight  float64 `mapstructure:"company-weight"`
	LocationWeight float64 `mapstructure:"location-weight"`
	// Authority ranks sources when choosing field values; higher wins.
	Authority map[string]int `mapstructure:"-"`
}

func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		TitleWeight:    DefaultTitleWeight,
		CompanyWeight:  DefaultCompanyWeight,
		LocationWeight: DefaultLocationWeight,
	}
}

func (o Options) Validate() error {
	if o.Threshold <= 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v not in (0, 1]", ErrInvalidOptions, o.Threshold)
	}
	for name, w := range map[string]float64{"title": o.TitleWeight, "company": o.CompanyWeight, "location": o.LocationWeight} {
		if w < 0 {
			return fmt.Errorf("%w: negative %s weight", ErrInvalidOptions, name)
		}
	}
	if sum := o.TitleWeight + o.CompanyWeight + o.LocationWeight; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidOptions, sum)
	}
	return nil
}

type Deduplicator struct {
	opts Options
}

func New(opts Options) (*Deduplicator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Deduplicator{opts: opts}, nil
}

// group is a cluster under construction: its merged record and provenance.
type group struct {
	rec  listing.Record
	from []listing.Provenance
	// keys are computed once per pass
	title, company, url string
}

func newGroup(rec listing.Record, from []listing.Provenance) *group {
	return &group{
		rec:     rec,
		from:    from,
		title:   textnorm.Title(rec.Title),
		company: textnorm.Company(rec.Company),
		url:     textnorm.CanonicalURL(rec.URL),
	}
}

// Deduplicate merges the records into canonical listings. Every record ends up
// in exactly one listing's MergedFrom.
func (d *Deduplicator) Deduplicate(records []listing.Record) []listing.Canonical {
	groups := make([]*group, 0, len(records))
	for _, r := range records {
		groups = append(groups, newGroup(r, []listing.Provenance{r.Provenance()}))
	}
	return d.run(groups)
}

// Reduce runs deduplication over already canonical listings.
func (d *Deduplicator) Reduce(listings []listing.Canonical) []listing.Canonical {
	groups := make([]*group, 0, len(listings))
	for _, c := range listings {
		from := slices.Clone(c.MergedFrom)
		if len(from) == 0 {
			from = []listing.Provenance{c.Provenance()}
		}
		groups = append(groups, newGroup(c.Record, from))
	}
	return d.run(groups)
}

func (d *Deduplicator) run(groups []*group) []listing.Canonical {
	for {
		next, merged := d.pass(groups)
		groups = next
		if !merged {
			break
		}
	}

	out := make([]listing.Canonical, 0, len(groups))
	for _, g := range groups {
		from := slices.Clone(g.from)
		listing.SortProvenance(from)
		out = append(out, listing.Canonical{
			Record:       g.rec,
			MergedFrom:   from,
			Completeness: listing.Completeness(g.rec),
		})
	}
	return out
}

// pass merges every matching pair found inside a bucket once.
func (d *Deduplicator) pass(groups []*group) ([]*group, bool) {
	buckets := make(map[string][]int)
	var order []string
	add := func(key string, i int) {
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], i)
	}
	for i, g := range groups {
		switch {
		case g.company != "":
			// every company token is a bucket so that variants such as
			// "google cloud" and "google cloud platform" still meet
			seen := make(map[string]bool)
			for _, tok := range strings.Fields(g.company) {
				if !seen[tok] {
					seen[tok] = true
					add("c:"+tok, i)
				}
			}
		case g.title != "":
			add("t:"+strings.Fields(g.title)[0], i)
		}
		if g.url != "" {
			add("u:"+g.url, i)
		}
	}

	uf := newUnionFind(len(groups))
	merged := false
	for _, key := range order {
		idx := buckets[key]
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				i, j := idx[a], idx[b]
				if uf.find(i) == uf.find(j) {
					continue
				}
				if d.match(groups[i], groups[j]) {
					uf.union(i, j)
					merged = true
				}
			}
		}
	}
	if !merged {
		return groups, false
	}

	clusters := make(map[int][]*group)
	var roots []int
	for i, g := range groups {
		root := uf.find(i)
		if _, ok := clusters[root]; !ok {
			roots = append(roots, root)
		}
		clusters[root] = append(clusters[root], g)
	}

	out := make([]*group, 0, len(roots))
	for _, root := range roots {
		members := clusters[root]
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		out = append(out, d.merge(members))
	}
	return out, true
}

func (d *Deduplicator) match(a, b *group) bool {
	if a.title != "" && a.company != "" && a.title == b.title && a.company == b.company {
		return true
	}
	if a.url != "" && a.url == b.url {
		return true
	}
	return d.similarity(a, b) >= d.opts.Threshold
}

// Similarity is the composite similarity of two records in [0, 1].
func (d *Deduplicator) Similarity(a, b listing.Record) float64 {
	return d.similarity(newGroup(a, nil), newGroup(b, nil))
}

func (d *Deduplicator) similarity(a, b *group) float64 {
	title := textnorm.TitleSimilarity(a.title, b.title)
	company := companySimilarity(a.company, b.company)
	location := locationSimilarity(a.rec, b.rec)
	return d.opts.TitleWeight*title + d.opts.CompanyWeight*company + d.opts.LocationWeight*location
}

func companySimilarity(a, b string) float64 {
	switch {
	case a == "" || b == "":
		return 0.5
	case a == b:
		return 1
	}
	return textnorm.Jaccard(textnorm.TokenSet(a), textnorm.TokenSet(b))
}

func locationSimilarity(a, b listing.Record) float64 {
	ra, rb := a.IsRemote(), b.IsRemote()
	if ra && rb {
		return 1
	}
	la, lb := textnorm.Location(a.Location), textnorm.Location(b.Location)
	if len(la) == 0 || len(lb) == 0 {
		return missingLocation
	}
	if la[0] == lb[0] {
		return 1
	}
	return textnorm.Jaccard(textnorm.TokenSet(strings.Join(la, " ")), textnorm.TokenSet(strings.Join(lb, " ")))
}

// merge combines a cluster into one group. Members are ordered by authority,
// then completeness, then earliest fetch, then provenance.
func (d *Deduplicator) merge(members []*group) *group {
	ordered := slices.Clone(members)
	slices.SortStableFunc(ordered, func(x, y *group) int {
		if ax, ay := d.opts.Authority[x.rec.SourceID], d.opts.Authority[y.rec.SourceID]; ax != ay {
			return ay - ax
		}
		if cx, cy := listing.Completeness(x.rec), listing.Completeness(y.rec); cx != cy {
			if cx > cy {
				return -1
			}
			return 1
		}
		if !x.rec.FetchedAt.Equal(y.rec.FetchedAt) {
			return x.rec.FetchedAt.Compare(y.rec.FetchedAt)
		}
		if c := strings.Compare(x.rec.SourceID, y.rec.SourceID); c != 0 {
			return c
		}
		return strings.Compare(x.rec.ExternalID, y.rec.ExternalID)
	})

	primary := ordered[0].rec
	rec := listing.Record{
		SourceID:   primary.SourceID,
		ExternalID: primary.ExternalID,
		Title:      primary.Title,
		Company:    primary.Company,
		FetchedAt:  primary.FetchedAt,
	}

	var from []listing.Provenance
	for _, g := range ordered {
		r := g.rec
		from = append(from, g.from...)

		if rec.Salary.IsZero() && !r.Salary.IsZero() {
			rec.Salary = r.Salary
		}
		if rec.Location == "" {
			rec.Location = r.Location
		}
		if rec.EmploymentType == "" {
			rec.EmploymentType = r.EmploymentType
		}
		if rec.URL == "" {
			rec.URL = r.URL
		}
		if rec.PostedAt == nil && r.PostedAt != nil {
			t := *r.PostedAt
			rec.PostedAt = &t
		}
		if rec.Company == "" {
			rec.Company = r.Company
		}
		rec.Remote = rec.Remote || r.Remote
		if !r.FetchedAt.IsZero() && (rec.FetchedAt.IsZero() || r.FetchedAt.Before(rec.FetchedAt)) {
			rec.FetchedAt = r.FetchedAt
		}
	}
	rec.Description = bestDescription(ordered)

	listing.SortProvenance(from)
	return newGroup(rec, from)
}

// bestDescription prefers complete descriptions over truncated ones, then the
// longest; ties keep member order.
func bestDescription(ordered []*group) string {
	best := ""
	bestTruncated := true
	for _, g := range ordered {
		desc := g.rec.Description
		if desc == "" {
			continue
		}
		truncated := isTruncated(desc)
		switch {
		case best == "":
		case bestTruncated && !truncated:
		case bestTruncated == truncated && utf8.RuneCountInString(desc) > utf8.RuneCountInString(best):
		default:
			continue
		}
		best, bestTruncated = desc, truncated
	}
	return best
}

func isTruncated(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, "...") || strings.HasSuffix(s, "…")
}
