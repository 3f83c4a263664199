package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/ai/gemini"
	"github.com/spigell/job-matcher/internal/cache"
	"github.com/spigell/job-matcher/internal/pipeline"
	"github.com/spigell/job-matcher/internal/profile"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/sources"
	"github.com/spigell/job-matcher/internal/sources/apify"
	"github.com/spigell/job-matcher/internal/sources/file"
	"github.com/spigell/job-matcher/internal/sources/headhunter"
	"github.com/spigell/job-matcher/internal/sources/lever"
)

const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"

	geminiKeyEnv = "GEMINI_API_KEY_FILE"
)

type Config struct {
	Sources     []sources.Config    `mapstructure:"sources"`
	Pipeline    pipeline.Config     `mapstructure:"pipeline"`
	Search      profile.Preferences `mapstructure:"search"`
	Resume      string              `mapstructure:"resume"`
	Profile     string              `mapstructure:"profile"`
	HTTPTimeout time.Duration       `mapstructure:"http-timeout"`
	Cache       CacheConfig         `mapstructure:"cache"`
	History     HistoryConfig       `mapstructure:"history"`
	AI          *AIConfig           `mapstructure:"ai"`
}

type CacheConfig struct {
	Backend string            `mapstructure:"backend"`
	TTL     time.Duration     `mapstructure:"ttl"`
	Redis   cache.RedisConfig `mapstructure:"redis"`
}

type HistoryConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Path     string `mapstructure:"path"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

// Validate checks the parts of the config that cannot be defaulted.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	enabled := 0
	for i, s := range c.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if strings.TrimSpace(s.Type) == "" {
			return fmt.Errorf("source %q: type is required", s.ID)
		}
		if !s.Disabled {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("at least one enabled source is required")
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "", CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.AI != nil && c.AI.Enabled {
		provider := strings.ToLower(strings.TrimSpace(c.AI.Provider))
		if provider != "" && provider != "gemini" {
			return fmt.Errorf("unsupported ai provider: %s", c.AI.Provider)
		}
		if c.AI.Gemini == nil {
			return errors.New("gemini configuration is required when ai is enabled")
		}
	}

	return nil
}

func (c *Config) aiEnabled() bool {
	return c.AI != nil && c.AI.Enabled && c.AI.Gemini != nil
}

// newRegistry knows every built-in source type.
func newRegistry() *sources.Registry {
	r := sources.NewRegistry()
	r.Register(apify.Type, apify.Factory)
	r.Register(headhunter.Type, headhunter.Factory)
	r.Register(lever.Type, lever.Factory)
	r.Register(file.Type, file.Factory)
	return r
}

func newCache(ctx context.Context, cfg CacheConfig, logger *zap.Logger) cache.Cache {
	switch strings.ToLower(cfg.Backend) {
	case CacheRedis:
		return cache.NewRedis(ctx, cfg.Redis, logger)
	case CacheMemory:
		return cache.NewMemory()
	default:
		return nil
	}
}

const redacted = "***"

// sensitiveOption reports whether a source option carries a credential.
func sensitiveOption(key string) bool {
	key = strings.ToLower(key)
	if strings.HasSuffix(key, "-file") {
		return false
	}
	for _, marker := range []string{"token", "password", "secret", "api-key", "apikey"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

// redactedSources copies the sources with credential options masked, so the
// config can be dumped to the log.
func redactedSources(in []sources.Config) []sources.Config {
	out := make([]sources.Config, len(in))
	for i, s := range in {
		out[i] = s
		if len(s.Options) == 0 {
			continue
		}
		out[i].Options = make(map[string]any, len(s.Options))
		for k, v := range s.Options {
			if sensitiveOption(k) {
				v = redacted
			}
			out[i].Options[k] = v
		}
	}
	return out
}

// dump renders the config for debug logging without credentials.
func (c *Config) dump() string {
	safe := *c
	safe.Sources = redactedSources(c.Sources)
	// the resume text is personal data and can be long
	if safe.Search.Resume != "" {
		safe.Search.Resume = redacted
	}
	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(safe, "", "  ")
	return string(pretty)
}

func buildSources(ctx context.Context, cfg *Config, logger *zap.Logger) ([]sources.Source, error) {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return newRegistry().Build(cfg.Sources, sources.Deps{
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: timeout},
		Cache:      newCache(ctx, cfg.Cache, logger),
		CacheTTL:   cfg.Cache.TTL,
	})
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   geminiKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or %s)", err, geminiKeyEnv)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

// collaborators builds the profile extractor and the summarizer. Both are nil
// when AI is disabled.
func collaborators(ctx context.Context, cfg *Config, model string, logger *zap.Logger) (ai.ProfileExtractor, ai.Summarizer, error) {
	if !cfg.aiEnabled() {
		return nil, nil, nil
	}

	if model != "" {
		cfg.AI.Gemini.Model = model
	}
	gen, err := newGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("building gemini generator: %w", err)
	}

	aiLogger := logger.With(zap.String("provider", "gemini"), zap.String("model", gen.Model()))
	return gemini.NewExtractor(gen, aiLogger, cfg.AI.Gemini.MaxLogLength),
		gemini.NewSummarizer(gen, aiLogger, cfg.AI.Gemini.MaxLogLength),
		nil
}

// loadProfile reads a structured profile from a YAML or JSON file.
func loadProfile(path string) (profile.Extracted, error) {
	var ex profile.Extracted

	data, err := os.ReadFile(path)
	if err != nil {
		return ex, err
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &ex)
	} else {
		err = yaml.Unmarshal(data, &ex)
	}
	if err != nil {
		return ex, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return ex, nil
}

// resolveProfile picks the structured profile of the run: an explicit profile
// file wins, then a resume run through the extractor.
func resolveProfile(ctx context.Context, cfg *Config, extractor ai.ProfileExtractor, logger *zap.Logger) (profile.Extracted, error) {
	if path := strings.TrimSpace(cfg.Profile); path != "" {
		return loadProfile(path)
	}

	path := strings.TrimSpace(cfg.Resume)
	if path == "" {
		logger.Warn("no profile or resume given, skills and titles are scored neutrally")
		return profile.Extracted{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile.Extracted{}, fmt.Errorf("reading resume: %w", err)
	}
	if extractor == nil {
		return profile.Extracted{}, errors.New("ai must be enabled to extract a profile from resume text (or pass --profile)")
	}

	cfg.Search.Resume = string(data)
	return extractor.Extract(ctx, cfg.Search.Resume)
}
