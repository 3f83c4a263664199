package sources

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateConfig describes the usage limits of a board. Delay, when set, wins
// over RequestsPerSecond and means a fixed pause between calls.
type RateConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	Burst             int           `mapstructure:"burst"`
	Delay             time.Duration `mapstructure:"delay"`
}

// Limiter rate-limits an adapter per hostname.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

func NewLimiter(cfg RateConfig) *Limiter {
	r := rate.Inf
	b := cfg.Burst
	switch {
	case cfg.Delay > 0:
		r = rate.Every(cfg.Delay)
		b = 1
	case cfg.RequestsPerSecond > 0:
		r = rate.Limit(cfg.RequestsPerSecond)
	}
	if b <= 0 {
		b = 1
	}

	return &Limiter{
		m: make(map[string]*rate.Limiter),
		r: r,
		b: b,
	}
}

func (l *Limiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	l.m[host] = lim
	return lim
}

// WaitURL blocks until a call to raw is allowed. Running out of time while
// waiting is reported as a source timeout.
func (l *Limiter) WaitURL(ctx context.Context, source, raw string) error {
	if l == nil {
		return nil
	}
	host := "_"
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	}
	if err := l.limiterFor(host).Wait(ctx); err != nil {
		return Timeout(source, err)
	}
	return nil
}
