package ratelimit

import "context"

// RateLimiter throttles provider submissions per provider key so no single
// gateway gets flooded by a burst of tenants at once.
type RateLimiter interface {
	Allow(ctx context.Context, providerKey string) (bool, error)
	Wait(ctx context.Context, providerKey string) error
}
