// Package file serves listings from a local YAML file. It backs offline demos
// and end-to-end runs.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/sources"
	"github.com/spigell/job-matcher/internal/utils"
)

const Type = "file"

type Options struct {
	Path  string        `mapstructure:"path"`
	Delay time.Duration `mapstructure:"delay"`
	// Fail makes every fetch fail with the given kind: timeout, unavailable
	// or malformed.
	Fail string `mapstructure:"fail"`
}

type Source struct {
	id     string
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func Factory(cfg sources.Config, deps sources.Deps) (sources.Source, error) {
	var opts Options
	if err := sources.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, err
	}
	if opts.Path == "" && opts.Fail == "" {
		return nil, fmt.Errorf("source %s: path is required", cfg.ID)
	}
	switch opts.Fail {
	case "", "timeout", "unavailable", "malformed":
	default:
		return nil, fmt.Errorf("source %s: unknown failure kind %q", cfg.ID, opts.Fail)
	}
	return New(cfg.ID, opts, deps.Logger), nil
}

func New(id string, opts Options, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{id: id, opts: opts, logger: logger, now: time.Now}
}

func (s *Source) ID() string { return s.id }

func (s *Source) Fetch(ctx context.Context, _ profile.Canonical, limit int) ([]listing.Record, error) {
	if err := utils.WaitFor(ctx, s.opts.Delay); err != nil {
		return nil, sources.Timeout(s.id, err)
	}

	switch s.opts.Fail {
	case "timeout":
		return nil, sources.Timeout(s.id, fmt.Errorf("configured to time out"))
	case "unavailable":
		return nil, sources.Unavailable(s.id, fmt.Errorf("configured to be unavailable"))
	case "malformed":
		return nil, sources.Malformed(s.id, fmt.Errorf("configured to return malformed data"))
	}

	records, err := Load(s.opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sources.Unavailable(s.id, err)
		}
		return nil, sources.Malformed(s.id, err)
	}

	fetchedAt := s.now().UTC()
	out := make([]listing.Record, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		r.SourceID = s.id
		if r.ExternalID == "" {
			r.ExternalID = sources.FallbackID(r.Title, r.Company, r.URL)
		}
		if r.FetchedAt.IsZero() {
			r.FetchedAt = fetchedAt
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	s.logger.Debug("fixture listings loaded", zap.String("path", s.opts.Path), zap.Int("count", len(out)))
	return out, nil
}

// Load reads a YAML list of listing records.
func Load(path string) ([]listing.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []listing.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}
