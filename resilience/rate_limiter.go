package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a call exceeds the configured rate.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Name identifies this limiter in logs.
	Name string
	// Rate is the number of calls allowed per second. Defaults to 10.
	Rate float64
	// Burst is the bucket capacity. Defaults to Rate, at least 1.
	Burst int
}

// RateLimiter is a token bucket shared by every call to one intent type.
type RateLimiter struct {
	name    string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.Rate))
	}
	return &RateLimiter{
		name:    cfg.Name,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		now:     time.Now,
	}
}

// Allow takes a token if one is available now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.AllowN(rl.now(), 1)
}

// Wait blocks until a token is available or ctx is done, in which case it
// returns ctx.Err() and gives the token back. Waiters are served in
// arrival order.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	r := rl.limiter.ReserveN(rl.now(), 1)
	if !r.OK() {
		return ErrRateLimited
	}
	delay := r.DelayFrom(rl.now())
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.CancelAt(rl.now())
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Tokens returns the number of tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.TokensAt(rl.now())
}
