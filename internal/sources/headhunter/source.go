// Package headhunter is the hh.ru job board adapter.
package headhunter

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/sources"
)

const (
	Type     = "headhunter"
	tokenEnv = "HH_TOKEN_FILE"
)

type Options struct {
	Token     string       `mapstructure:"token"`
	TokenFile string       `mapstructure:"token-file"`
	UserAgent string       `mapstructure:"user-agent"`
	APIURL    string       `mapstructure:"api-url"`
	Search    SearchParams `mapstructure:"search"`
}

type Source struct {
	id     string
	client *Client
	search SearchParams
	logger *zap.Logger
	now    func() time.Time
}

// Factory builds the adapter from configuration. The token is optional since
// vacancy search works anonymously.
func Factory(cfg sources.Config, deps sources.Deps) (sources.Source, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	token, err := secrets.Load(secrets.Source{
		Name:  "headhunter token",
		Value: opts.Token,
		File:  opts.TokenFile,
		Env:   tokenEnv,
	})
	if err != nil {
		deps.Logger.Debug("searching hh.ru anonymously", zap.String("reason", err.Error()))
		token = ""
	}

	client := NewClient(cfg.ID, token, deps.HTTPClient, sources.NewLimiter(cfg.Rate), deps.Logger)
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	if opts.APIURL != "" {
		client.APIURL = strings.TrimRight(opts.APIURL, "/")
	}

	return New(cfg.ID, client, opts.Search, deps.Logger), nil
}

func New(id string, client *Client, search SearchParams, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{id: id, client: client, search: search, logger: logger, now: time.Now}
}

func (s *Source) ID() string { return s.id }

func (s *Source) Fetch(ctx context.Context, p profile.Canonical, limit int) ([]listing.Record, error) {
	params := s.search
	q := p.Query()
	if params.Text == "" {
		params.Text = q.Text
	}
	if p.WantsRemote() || p.JobType() == listing.Remote {
		params.Schedules = append([]string{"remote"}, params.Schedules...)
	}
	if id, ok := employmentIDs[p.JobType()]; ok && len(params.Employment) == 0 {
		params.Employment = []string{id}
	}

	vacancies, err := s.client.Search(ctx, params, limit)
	if err != nil {
		return nil, sources.Wrap(s.id, err)
	}

	fetchedAt := s.now().UTC()
	records := make([]listing.Record, 0, len(vacancies))
	for _, v := range vacancies {
		if v == nil || v.Archived || strings.TrimSpace(v.Name) == "" {
			continue
		}
		records = append(records, v.ToRecord(s.id, fetchedAt))
	}

	s.logger.Debug("vacancies found", zap.Int("count", len(records)))
	return records, nil
}
