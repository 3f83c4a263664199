// Package aggregator fans a profile out to every configured source and joins
// their batches into one candidate pool.
//
// Each source runs under its own timeout bounded by one global deadline. A
// source either returns its whole batch in time or contributes a source error;
// late results are discarded. Records are concatenated in source order, so the
// pool does not depend on completion order.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/listing"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/sources"
)

var (
	// ErrAggregationFailed is matched by the error returned when every source failed.
	ErrAggregationFailed = errors.New("all sources failed")
	ErrNoSources         = errors.New("no sources configured")
)

const (
	DefaultPerSourceTimeout = 20 * time.Second
	DefaultDeadline         = 45 * time.Second
	DefaultLimit            = 25
)

// FailedError carries the per-source errors of a run where nothing succeeded.
type FailedError struct {
	Errors []listing.SourceError
}

func (e *FailedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, se := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", se.SourceID, se.Kind))
	}
	return fmt.Sprintf("%s (%s)", ErrAggregationFailed, strings.Join(parts, ", "))
}

func (e *FailedError) Is(target error) bool {
	return target == ErrAggregationFailed
}

type Options struct {
	PerSourceTimeout time.Duration `mapstructure:"per-source-timeout"`
	Deadline         time.Duration `mapstructure:"deadline"`
	// Limit is passed to every source as the maximum batch size.
	Limit int `mapstructure:"limit"`
}

func (o Options) withDefaults() Options {
	if o.PerSourceTimeout <= 0 {
		o.PerSourceTimeout = DefaultPerSourceTimeout
	}
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// Pool is the joined output of one collection.
type Pool struct {
	Records   []listing.Record
	Errors    []listing.SourceError
	Succeeded int
}

type Aggregator struct {
	sources []sources.Source
	opts    Options
	logger  *zap.Logger
}

func New(srcs []sources.Source, opts Options, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{sources: srcs, opts: opts.withDefaults(), logger: logger}
}

type outcome struct {
	records []listing.Record
	err     error
}

// Collect queries all sources concurrently. It returns a *FailedError when
// every source failed; the pool is returned in that case too so callers can
// report the diagnostics.
func (a *Aggregator) Collect(ctx context.Context, p profile.Canonical) (Pool, error) {
	if len(a.sources) == 0 {
		return Pool{}, ErrNoSources
	}

	dctx, cancel := context.WithTimeout(ctx, a.opts.Deadline)
	defer cancel()

	results := make([]outcome, len(a.sources))
	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.run(dctx, src, p)
			// best-effort: a failed source never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()

	var pool Pool
	for i, src := range a.sources {
		res := results[i]
		if res.err != nil {
			kind := sources.Classify(res.err)
			pool.Errors = append(pool.Errors, listing.SourceError{
				SourceID: src.ID(),
				Kind:     kind,
				Message:  res.err.Error(),
			})
			a.logger.Warn("source failed",
				zap.String("source", src.ID()),
				zap.String("kind", string(kind)),
				zap.Error(res.err),
			)
			continue
		}
		pool.Succeeded++
		pool.Records = append(pool.Records, res.records...)
	}

	if pool.Succeeded == 0 {
		return pool, &FailedError{Errors: pool.Errors}
	}
	return pool, nil
}

// run fetches one source. A source that ignores its context is abandoned when
// the timeout fires; its goroutine finishes in the background and the result
// is dropped.
func (a *Aggregator) run(ctx context.Context, src sources.Source, p profile.Canonical) outcome {
	fctx, cancel := context.WithTimeout(ctx, a.opts.PerSourceTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		records, err := src.Fetch(fctx, p, a.opts.Limit)
		done <- outcome{records: records, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-fctx.Done():
		res = outcome{err: sources.Timeout(src.ID(), fctx.Err())}
	}

	if res.err == nil && fctx.Err() != nil {
		// finished after the deadline; partial or late batches are not used
		res = outcome{err: sources.Timeout(src.ID(), fctx.Err())}
	}
	if res.err != nil {
		res.err = sources.Wrap(src.ID(), res.err)
		return res
	}

	res.records = a.normalize(src.ID(), res.records)
	a.logger.Info("source fetched",
		zap.String("source", src.ID()),
		zap.Int("records", len(res.records)),
		zap.Duration("took", time.Since(start)),
	)
	return res
}

// normalize stamps provenance and drops anything past the limit.
func (a *Aggregator) normalize(id string, records []listing.Record) []listing.Record {
	if len(records) > a.opts.Limit {
		records = records[:a.opts.Limit]
	}
	out := make([]listing.Record, len(records))
	for i, r := range records {
		r.SourceID = id
		if r.ExternalID == "" {
			r.ExternalID = sources.FallbackID(r.Title, r.Company, r.URL)
		}
		out[i] = r
	}
	return out
}
