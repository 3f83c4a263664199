package sources

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/cache"
	"github.com/spigell/job-matcher/internal/logger"
)

// Config describes one configured board. Adapter specific keys are kept in
// Options and decoded by the adapter factory.
type Config struct {
	ID        string         `mapstructure:"id"`
	Type      string         `mapstructure:"type"`
	Disabled  bool           `mapstructure:"disabled"`
	Authority int            `mapstructure:"authority"`
	Rate      RateConfig     `mapstructure:"rate"`
	Options   map[string]any `mapstructure:",remain"`
}

// Deps are shared by every adapter built from configuration.
type Deps struct {
	Logger     *zap.Logger
	HTTPClient *http.Client
	Cache      cache.Cache
	CacheTTL   time.Duration
}

// Factory builds an adapter of one type.
type Factory func(cfg Config, deps Deps) (Source, error)

// Registry maps adapter types to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(kind string, f Factory) {
	r.factories[strings.ToLower(kind)] = f
}

// Types lists registered adapter types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build constructs the enabled sources in configuration order, each wrapped
// with the response cache.
func (r *Registry) Build(cfgs []Config, deps Deps) ([]Source, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	seen := make(map[string]bool, len(cfgs))
	out := make([]Source, 0, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.Disabled {
			deps.Logger.Info("source disabled", zap.String("source", cfg.ID))
			continue
		}
		if strings.TrimSpace(cfg.ID) == "" {
			return nil, fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("sources[%d]: duplicate id %q", i, cfg.ID)
		}
		seen[cfg.ID] = true

		factory, ok := r.factories[strings.ToLower(cfg.Type)]
		if !ok {
			return nil, fmt.Errorf("source %q: unknown type %q (known: %s)", cfg.ID, cfg.Type, strings.Join(r.Types(), ", "))
		}

		sdeps := deps
		sdeps.Logger = logger.WithFields(deps.Logger, logger.SourceFields(cfg.ID, cfg.Type)...)
		src, err := factory(cfg, sdeps)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", cfg.ID, err)
		}

		out = append(out, WithCache(src, deps.Cache, deps.CacheTTL, deps.Logger))
	}
	return out, nil
}

// Authority returns the configured authority per source id.
func Authority(cfgs []Config) map[string]int {
	out := make(map[string]int, len(cfgs))
	for _, cfg := range cfgs {
		out[cfg.ID] = cfg.Authority
	}
	return out
}

// DecodeOptions decodes adapter specific options into target.
func DecodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("decoding options: %w", err)
	}
	return nil
}
