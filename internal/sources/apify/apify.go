// Package apify fetches listings from job board scrapers hosted on Apify
// (LinkedIn, Indeed and Dice style actors) through the synchronous
// run-and-get-dataset endpoint.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/sources"
)

const (
	Type       = "apify"
	defaultAPI = "https://api.apify.com"
	tokenEnv   = "APIFY_TOKEN"
)

// Options are the adapter specific keys of a source entry.
type Options struct {
	Actor     string `mapstructure:"actor"`
	BaseURL   string `mapstructure:"base-url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
}

type Source struct {
	id      string
	actor   string
	baseURL string
	token   string
	hc      *http.Client
	limiter *sources.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// runInput is the actor input shared by the supported scrapers.
type runInput struct {
	Query    string `json:"query"`
	Location string `json:"location"`
	Limit    int    `json:"limit"`
}

type item struct {
	ID          string `mapstructure:"id"`
	Title       string `mapstructure:"title"`
	CompanyName string `mapstructure:"companyName"`
	JobLocation struct {
		DisplayName string `mapstructure:"displayName"`
	} `mapstructure:"jobLocation"`
	PostedDate     string `mapstructure:"postedDate"`
	EmploymentType string `mapstructure:"employmentType"`
	Salary         string `mapstructure:"salary"`
	Summary        string `mapstructure:"summary"`
	DetailsPageURL string `mapstructure:"detailsPageUrl"`
	IsRemote       bool   `mapstructure:"isRemote"`
}

// Factory builds the adapter from configuration.
func Factory(cfg sources.Config, deps sources.Deps) (sources.Source, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Actor) == "" {
		return nil, errors.New("actor is required")
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "apify token",
		Value: opts.Token,
		File:  opts.TokenFile,
		Env:   tokenEnv,
	})
	if err != nil {
		return nil, err
	}

	return New(cfg.ID, opts.Actor, token, opts.BaseURL, deps.HTTPClient, sources.NewLimiter(cfg.Rate), deps.Logger), nil
}

func New(id, actor, token, baseURL string, hc *http.Client, limiter *sources.Limiter, logger *zap.Logger) *Source {
	if baseURL == "" {
		baseURL = defaultAPI
	}
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		id:      id,
		actor:   actor,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      hc,
		limiter: limiter,
		logger:  logger.With(zap.String("actor", actor)),
		now:     time.Now,
	}
}

func (s *Source) ID() string { return s.id }

func (s *Source) Fetch(ctx context.Context, p profile.Canonical, limit int) ([]listing.Record, error) {
	q := p.Query()
	payload, err := json.Marshal(runInput{Query: q.Text, Location: q.Location, Limit: limit})
	if err != nil {
		return nil, sources.Unavailable(s.id, err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", s.baseURL, strings.ReplaceAll(s.actor, "/", "~"))
	params := url.Values{}
	params.Set("token", s.token)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	if err := s.limiter.WaitURL(ctx, s.id, endpoint); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, sources.Unavailable(s.id, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("running actor", zap.String("query", q.Text), zap.String("location", q.Location), zap.Int("limit", limit))

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, sources.Wrap(s.id, err)
	}
	defer resp.Body.Close()

	if err := sources.CheckStatus(s.id, resp); err != nil {
		return nil, err
	}

	var raw []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if ctx.Err() != nil {
			return nil, sources.Timeout(s.id, ctx.Err())
		}
		return nil, sources.Malformed(s.id, fmt.Errorf("decode dataset items: %w", err))
	}

	records, err := s.toRecords(raw)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	s.logger.Debug("actor returned items", zap.Int("items", len(raw)), zap.Int("records", len(records)))
	return records, nil
}

func (s *Source) toRecords(raw []map[string]any) ([]listing.Record, error) {
	fetchedAt := s.now().UTC()
	records := make([]listing.Record, 0, len(raw))
	var lastErr error

	for i, m := range raw {
		var it item
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &it,
		})
		if err != nil {
			return nil, sources.Unavailable(s.id, err)
		}
		if err := decoder.Decode(m); err != nil {
			lastErr = fmt.Errorf("item %d: %w", i, err)
			s.logger.Debug("skipping malformed item", zap.Int("index", i), zap.Error(err))
			continue
		}

		title := strings.TrimSpace(it.Title)
		if title == "" {
			lastErr = fmt.Errorf("item %d: missing title", i)
			continue
		}

		company := strings.TrimSpace(it.CompanyName)
		location := strings.TrimSpace(it.JobLocation.DisplayName)
		externalID := strings.TrimSpace(it.ID)
		if externalID == "" {
			externalID = strings.TrimSpace(it.DetailsPageURL)
		}
		if externalID == "" {
			externalID = sources.FallbackID(title, company, location)
		}

		records = append(records, listing.Record{
			SourceID:       s.id,
			ExternalID:     externalID,
			Title:          title,
			Company:        company,
			Location:       location,
			Salary:         listing.ParseSalary(it.Salary),
			EmploymentType: strings.TrimSpace(it.EmploymentType),
			Description:    sources.HTMLText(it.Summary),
			URL:            strings.TrimSpace(it.DetailsPageURL),
			Remote:         it.IsRemote,
			PostedAt:       sources.ParsePostedAt(it.PostedDate, fetchedAt),
			FetchedAt:      fetchedAt,
		})
	}

	if len(raw) > 0 && len(records) == 0 {
		return nil, sources.Malformed(s.id, lastErr)
	}
	return records, nil
}
