// Package lever reads public postings of companies hosted on Lever.
package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/sources"
	"github.com/spigell/job-matcher/internal/textnorm"
)

const (
	Type       = "lever"
	defaultAPI = "https://api.lever.co"
	userAgent  = "job-matcher/1.0 (+local)"
	workers    = 4
)

type Company struct {
	Slug string `mapstructure:"slug"` // api.lever.co/v0/postings/<slug>
	Name string `mapstructure:"name"`
}

type Options struct {
	Companies []Company `mapstructure:"companies"`
	BaseURL   string    `mapstructure:"base-url"`
}

type Source struct {
	id        string
	companies []Company
	baseURL   string
	hc        *http.Client
	limiter   *sources.Limiter
	logger    *zap.Logger
	now       func() time.Time
}

type posting struct {
	ID              string `json:"id"`
	Text            string `json:"text"` // title
	HostedURL       string `json:"hostedUrl"`
	CreatedAt       int64  `json:"createdAt"` // ms epoch
	WorkplaceType   string `json:"workplaceType"`
	Description     string `json:"description"` // html
	DescriptionText string `json:"descriptionPlain"`
	Categories      struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	SalaryRange *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"salaryRange"`
}

func Factory(cfg sources.Config, deps sources.Deps) (sources.Source, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if len(opts.Companies) == 0 {
		return nil, fmt.Errorf("source %s: at least one company is required", cfg.ID)
	}
	for _, c := range opts.Companies {
		if strings.TrimSpace(c.Slug) == "" {
			return nil, fmt.Errorf("source %s: company slug is empty", cfg.ID)
		}
	}
	return New(cfg.ID, opts.Companies, opts.BaseURL, deps.HTTPClient, sources.NewLimiter(cfg.Rate), deps.Logger), nil
}

func New(id string, companies []Company, baseURL string, hc *http.Client, limiter *sources.Limiter, logger *zap.Logger) *Source {
	if baseURL == "" {
		baseURL = defaultAPI
	}
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		id:        id,
		companies: companies,
		baseURL:   strings.TrimRight(baseURL, "/"),
		hc:        hc,
		limiter:   limiter,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Source) ID() string { return s.id }

// Fetch reads every configured company and keeps the postings whose title
// shares a token with the profile query. A single failing company fails the
// whole fetch.
func (s *Source) Fetch(ctx context.Context, p profile.Canonical, limit int) ([]listing.Record, error) {
	batches := make([][]listing.Record, len(s.companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, co := range s.companies {
		g.Go(func() error {
			records, err := s.fetchCompany(gctx, co)
			if err != nil {
				s.logger.Debug("lever company failed",
					zap.String("company", co.Name),
					zap.String("slug", co.Slug),
					zap.Error(err),
				)
				return err
			}
			batches[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	want := textnorm.TokenSet(textnorm.Title(p.Query().Text))
	var out []listing.Record
	for _, batch := range batches {
		for _, r := range batch {
			if !matchesQuery(want, r.Title) {
				continue
			}
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}

	s.logger.Debug("lever postings found", zap.Int("count", len(out)))
	return out, nil
}

func matchesQuery(want map[string]bool, title string) bool {
	if len(want) == 0 {
		return true
	}
	for tok := range textnorm.TokenSet(textnorm.Title(title)) {
		if want[tok] {
			return true
		}
	}
	return false
}

func (s *Source) fetchCompany(ctx context.Context, co Company) ([]listing.Record, error) {
	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", s.baseURL, co.Slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, sources.Unavailable(s.id, err)
	}
	req.Header.Set("User-Agent", userAgent)

	if err := s.limiter.WaitURL(ctx, s.id, apiURL); err != nil {
		return nil, err
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return nil, sources.Wrap(s.id, fmt.Errorf("lever get: %w", err))
	}
	defer res.Body.Close()
	if err := sources.CheckStatus(s.id, res); err != nil {
		return nil, err
	}

	var postings []posting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		if ctx.Err() != nil {
			return nil, sources.Timeout(s.id, ctx.Err())
		}
		return nil, sources.Malformed(s.id, fmt.Errorf("lever decode: %w", err))
	}

	fetchedAt := s.now().UTC()
	out := make([]listing.Record, 0, len(postings))
	for _, p := range postings {
		if p.ID == "" || strings.TrimSpace(p.Text) == "" {
			continue
		}
		out = append(out, p.toRecord(s.id, co, fetchedAt))
	}
	return out, nil
}

func (p posting) toRecord(source string, co Company, fetchedAt time.Time) listing.Record {
	description := textnorm.Clean(p.DescriptionText)
	if description == "" {
		description = sources.HTMLText(p.Description)
	}

	var posted *time.Time
	if p.CreatedAt > 0 {
		t := time.UnixMilli(p.CreatedAt).UTC()
		posted = &t
	}

	var salary listing.Salary
	if p.SalaryRange != nil {
		if p.SalaryRange.Min > 0 {
			v := p.SalaryRange.Min
			salary.Min = &v
		}
		if p.SalaryRange.Max > 0 {
			v := p.SalaryRange.Max
			salary.Max = &v
		}
		if !salary.IsZero() {
			salary.Currency = p.SalaryRange.Currency
		}
	}

	company := co.Name
	if company == "" {
		company = co.Slug
	}

	return listing.Record{
		SourceID:       source,
		ExternalID:     fmt.Sprintf("%s:%s", co.Slug, p.ID),
		Title:          strings.TrimSpace(p.Text),
		Company:        company,
		Location:       textnorm.Clean(p.Categories.Location),
		Salary:         salary,
		EmploymentType: listing.NormalizeEmploymentType(p.Categories.Commitment),
		Description:    description,
		URL:            p.HostedURL,
		Remote:         strings.EqualFold(p.WorkplaceType, "remote"),
		PostedAt:       posted,
		FetchedAt:      fetchedAt,
	}
}
