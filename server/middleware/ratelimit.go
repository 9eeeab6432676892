package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/intentflow/auth/jwt"
	apperrors "github.com/kbukum/intentflow/errors"
	"github.com/kbukum/intentflow/resilience"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Rate is requests per second per client.
	Rate  float64 `yaml:"rate" mapstructure:"rate"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
	// IdleTTL evicts buckets of clients not seen for this long.
	IdleTTL time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
}

// ApplyDefaults fills zero values.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.Rate <= 0 {
		c.Rate = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
}

type bucket struct {
	limiter  *resilience.RateLimiter
	lastSeen time.Time
}

type limiterSet struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	if now.Sub(s.swept) > s.cfg.IdleTTL {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > s.cfg.IdleTTL {
				delete(s.buckets, k)
			}
		}
		s.swept = now
	}
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name: key, Rate: s.cfg.Rate, Burst: s.cfg.Burst,
		})}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()
	return b.limiter.Allow()
}

// RateLimit throttles each client with its own token bucket. Clients are
// keyed by authenticated subject when present, otherwise by IP.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	cfg.ApplyDefaults()
	set := &limiterSet{cfg: cfg, buckets: make(map[string]*bucket), swept: time.Now()}
	return func(c *gin.Context) {
		if !set.allow(clientKey(c), time.Now()) {
			appErr := apperrors.RateLimited()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if claims, ok := jwt.ClaimsFromContext(c.Request.Context()); ok {
		return "sub:" + claims.Subject
	}
	return "ip:" + c.ClientIP()
}
