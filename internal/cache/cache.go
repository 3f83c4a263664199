// Package cache stores raw source responses for a short time so repeated runs
// with the same profile do not hit the boards again.
package cache

import (
	"context"
	"time"
)

// Cache is a JSON key/value store with per-entry expiry. A miss is reported
// as (false, nil).
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }
