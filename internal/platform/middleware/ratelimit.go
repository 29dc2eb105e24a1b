package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/medibook/medibook/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns the limits used when none are configured.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

type limiterStore struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	limiters map[string]*rate.Limiter
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.BurstSize)
		s.limiters[key] = lim
	}
	return lim
}

// RateLimit throttles each caller with a token bucket. Authenticated callers
// are keyed by user so patients behind one NAT do not share a budget; anyone
// else is keyed by client IP. It must run after the auth middleware.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(cfg, time.Now)
}

func rateLimit(cfg RateLimitConfig, now func() time.Time) echo.MiddlewareFunc {
	store := &limiterStore{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if p := auth.PrincipalFromContext(c.Request().Context()); p != nil && p.UserID != "" {
				key = "user:" + p.UserID
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			t := now()
			lim := store.get(key)
			if !lim.AllowN(t, 1) {
				h.Set("Retry-After", strconv.Itoa(retryAfter(lim, t, cfg.RequestsPerSecond)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// retryAfter is the whole seconds until lim holds a token again.
func retryAfter(lim *rate.Limiter, t time.Time, rps float64) int {
	if rps <= 0 {
		return 1
	}
	secs := int(math.Ceil((1 - lim.TokensAt(t)) / rps))
	if secs < 1 {
		return 1
	}
	return secs
}
