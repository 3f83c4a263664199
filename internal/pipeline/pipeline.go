// Package pipeline wires profile normalization, source aggregation,
// deduplication, scoring and ranking into a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/aggregator"
	"github.com/spigell/job-matcher/internal/dedup"
	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/ranking"
	"github.com/spigell/job-matcher/internal/scoring"
	"github.com/spigell/job-matcher/internal/sources"
)

// Stage names used in step logs and Result.Steps.
const (
	StageCollect = "collect"
	StageDedup   = "dedup"
	StageScore   = "score"
	StageRank    = "rank"
)

type Config struct {
	Aggregator aggregator.Options `mapstructure:"aggregator"`
	Dedup      dedup.Options      `mapstructure:"dedup"`
	Weights    scoring.Weights    `mapstructure:"weights"`
	Top        int                `mapstructure:"top"`
}

// DefaultConfig returns the configuration used when nothing is tuned.
func DefaultConfig() Config {
	return Config{
		Dedup:   dedup.DefaultOptions(),
		Weights: scoring.DefaultWeights(),
		Top:     ranking.DefaultTop,
	}
}

func (c Config) withDefaults() Config {
	if c.Dedup.Threshold == 0 && c.Dedup.TitleWeight == 0 && c.Dedup.CompanyWeight == 0 && c.Dedup.LocationWeight == 0 {
		authority := c.Dedup.Authority
		c.Dedup = dedup.DefaultOptions()
		c.Dedup.Authority = authority
	}
	if c.Weights == (scoring.Weights{}) {
		c.Weights = scoring.DefaultWeights()
	}
	if c.Top <= 0 {
		c.Top = ranking.DefaultTop
	}
	return c
}

type Deps struct {
	Sources []sources.Source
	// Authority ranks sources for field preference during merges.
	Authority map[string]int
	Logger    *zap.Logger
	// NewID generates run ids. Defaults to random UUIDs.
	NewID func() string
}

// Step describes the effect of one stage on the candidate count.
type Step struct {
	Initial int `json:"initial"`
	Dropped int `json:"dropped"`
	Left    int `json:"left"`
}

// StageStep is a named Step.
type StageStep struct {
	Name string `json:"name"`
	Step
}

// Result is the outcome of a run. It is returned alongside AggregationFailed
// so callers can still show which sources failed.
type Result struct {
	RunID       string               `json:"run_id"`
	Profile     profile.Canonical    `json:"profile"`
	Preferences profile.Preferences  `json:"-"`
	Ranked      listing.RankedResult `json:"ranked"`
	Steps       []StageStep          `json:"steps"`
}

type Pipeline struct {
	agg    *aggregator.Aggregator
	dedup  *dedup.Deduplicator
	scorer *scoring.Scorer
	top    int
	logger *zap.Logger
	newID  func() string
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	cfg = cfg.withDefaults()

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if len(deps.Sources) == 0 {
		return nil, aggregator.ErrNoSources
	}

	dopts := cfg.Dedup
	if deps.Authority != nil {
		dopts.Authority = deps.Authority
	}
	dd, err := dedup.New(dopts)
	if err != nil {
		return nil, fmt.Errorf("dedup: %w", err)
	}

	scorer, err := scoring.New(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}

	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Pipeline{
		agg:    aggregator.New(deps.Sources, cfg.Aggregator, log),
		dedup:  dd,
		scorer: scorer,
		top:    cfg.Top,
		logger: log,
		newID:  newID,
	}, nil
}

// Run executes one search. Only invalid preferences and a collection in which
// every source failed are returned as errors; an empty candidate pool yields
// an empty result.
func (p *Pipeline) Run(ctx context.Context, ex profile.Extracted, prefs profile.Preferences) (*Result, error) {
	canonical, err := profile.Normalize(ex, prefs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       p.newID(),
		Profile:     canonical,
		Preferences: prefs,
		Ranked: listing.RankedResult{
			Jobs:         []listing.Scored{},
			SourceErrors: []listing.SourceError{},
		},
	}
	log := logger.WithRun(p.logger, res.RunID, prefs.ModelName)
	log.Info("profile normalized",
		zap.Int("skills", len(canonical.Skills())),
		zap.Int("titles", len(canonical.Titles())),
		zap.Int("keywords", len(canonical.Keywords())),
		zap.String("location", canonical.Location()),
		zap.String("job_type", canonical.JobType()),
	)

	pool, err := p.agg.Collect(ctx, canonical)
	res.Ranked.TotalCandidates = len(pool.Records)
	if len(pool.Errors) > 0 {
		res.Ranked.SourceErrors = pool.Errors
	}
	if err != nil {
		if errors.Is(err, aggregator.ErrAggregationFailed) {
			log.Error("aggregation failed", zap.Int("failed_sources", len(pool.Errors)), zap.Error(err))
		}
		return res, err
	}
	res.record(log, StageCollect, Step{Initial: len(pool.Records), Left: len(pool.Records)})

	if len(pool.Records) == 0 {
		log.Info("no candidates", zap.Int("sources", pool.Succeeded))
		return res, nil
	}

	canon := p.dedup.Deduplicate(pool.Records)
	res.Ranked.TotalAfterDedup = len(canon)
	res.record(log, StageDedup, Step{
		Initial: len(pool.Records),
		Dropped: len(pool.Records) - len(canon),
		Left:    len(canon),
	})

	scored := p.scorer.ScoreAll(canonical, canon)
	res.record(log, StageScore, Step{Initial: len(canon), Left: len(scored)})

	ranked := ranking.Rank(scored, p.top)
	res.Ranked.Jobs = ranked
	res.record(log, StageRank, Step{
		Initial: len(scored),
		Dropped: len(scored) - len(ranked),
		Left:    len(ranked),
	})

	return res, nil
}

func (r *Result) record(log *zap.Logger, name string, step Step) {
	r.Steps = append(r.Steps, StageStep{Name: name, Step: step})
	log.Info("pipeline step",
		zap.String("name", name),
		zap.Int("initial", step.Initial),
		zap.Int("dropped", step.Dropped),
		zap.Int("left", step.Left),
	)
}
