package http

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backoff tuning applied after a host answers 429 or 503.
const (
	InitialBackoff        = 1 * time.Second
	MaxBackoff            = 60 * time.Second
	BackoffMultiplier     = 2.0
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the floor of rate reduction (0.25 = 25% of original).
	MinRPSMultiplier = 0.25
)

// Well-known hosts.
const (
	DataAPIHost       = "youtube.googleapis.com"
	LegacyDataAPIHost = "www.googleapis.com"
	SiteHost          = "www.youtube.com"
)

// RateLimiterConfig defines per-host request rates. A rate of 0 means unlimited.
type RateLimiterConfig struct {
	// DataAPIRPS applies to the YouTube Data API hosts.
	DataAPIRPS float64
	// SiteRPS applies to www.youtube.com (channel pages and feeds).
	SiteRPS float64
	// ThumbnailRPS applies to *.ytimg.com and *.ggpht.com.
	ThumbnailRPS float64
	// DefaultRPS applies to every other host.
	DefaultRPS float64
	// CustomRates overrides the rate for exact host names.
	CustomRates map[string]float64
	// EnableDynamicBackoff lowers a host's rate after rate limit responses.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns conservative rates for the hosts ytmonitor talks to.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DataAPIRPS:           5.0,
		SiteRPS:              2.0,
		ThumbnailRPS:         10.0,
		DefaultRPS:           0,
		CustomRates:          make(map[string]float64),
		EnableDynamicBackoff: true,
	}
}

// backoffState tracks rate limit backoff for a host.
type backoffState struct {
	current           time.Duration
	lastError         time.Time
	consecutiveErrors int
	originalRPS       float64
	reducedRPS        float64
}

// RateLimiter is a per-host token bucket limiter with dynamic backoff.
// A nil *RateLimiter allows everything.
type RateLimiter struct {
	mu       sync.RWMutex
	config   RateLimiterConfig
	limiters map[string]*rate.Limiter
	backoff  map[string]*backoffState
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
		backoff:  make(map[string]*backoffState),
	}
}

// Wait blocks until both any backoff window and the token bucket for the
// URL's host allow a request.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if rl == nil {
		return nil
	}
	host := hostOf(rawURL)

	if remaining := rl.backoffRemaining(host); remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	limiter := rl.limiterFor(host)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiterFor(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}
	rps := rl.rpsFor(host)
	if rps == 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[host] = limiter
	return limiter
}

// rpsFor must be called with rl.mu held.
func (rl *RateLimiter) rpsFor(host string) float64 {
	if rps, ok := rl.config.CustomRates[host]; ok {
		return rps
	}
	switch {
	case host == DataAPIHost || host == LegacyDataAPIHost:
		return rl.config.DataAPIRPS
	case host == SiteHost || host == "youtube.com":
		return rl.config.SiteRPS
	case IsThumbnailHost(host):
		return rl.config.ThumbnailRPS
	default:
		return rl.config.DefaultRPS
	}
}

// RPS returns the configured rate for host.
func (rl *RateLimiter) RPS(host string) float64 {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.rpsFor(host)
}

// RecordRateLimit notes a rate limit response from the URL's host and
// returns how long callers should wait. A server supplied retryAfter wins
// when it is longer than the computed backoff.
func (rl *RateLimiter) RecordRateLimit(rawURL string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialBackoff
	}
	host := hostOf(rawURL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoff[host]
	if !ok {
		state = &backoffState{current: InitialBackoff, originalRPS: rl.rpsFor(host)}
		rl.backoff[host] = state
	}
	state.lastError = time.Now()
	state.consecutiveErrors++

	if state.consecutiveErrors > 1 {
		state.current = time.Duration(float64(state.current) * BackoffMultiplier)
		if state.current > MaxBackoff {
			state.current = MaxBackoff
		}
	}
	if retryAfter > state.current {
		state.current = retryAfter
	}

	// 1 error: 75%, 2 errors: 50%, 3+ errors: 25%
	factor := 0.75
	switch {
	case state.consecutiveErrors >= 3:
		factor = MinRPSMultiplier
	case state.consecutiveErrors == 2:
		factor = 0.5
	}
	state.reducedRPS = state.originalRPS * factor
	if limiter, ok := rl.limiters[host]; ok && state.reducedRPS > 0 {
		limiter.SetLimit(rate.Limit(state.reducedRPS))
	}

	return state.current
}

// RecordSuccess lets a host recover from backoff.
func (rl *RateLimiter) RecordSuccess(rawURL string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}
	host := hostOf(rawURL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoff[host]
	if !ok {
		return
	}

	if time.Since(state.lastError) > BackoffCooldownPeriod {
		if limiter, ok := rl.limiters[host]; ok && state.originalRPS > 0 {
			limiter.SetLimit(rate.Limit(state.originalRPS))
		}
		delete(rl.backoff, host)
		return
	}

	if state.consecutiveErrors > 0 {
		state.consecutiveErrors--
		if state.consecutiveErrors == 0 && state.reducedRPS > 0 {
			recovered := state.originalRPS * 0.5
			if recovered > state.reducedRPS {
				state.reducedRPS = recovered
				if limiter, ok := rl.limiters[host]; ok {
					limiter.SetLimit(rate.Limit(recovered))
				}
			}
		}
	}
}

// CurrentRPS returns the effective rate for host, including any reduction.
func (rl *RateLimiter) CurrentRPS(host string) float64 {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if state, ok := rl.backoff[host]; ok && state.reducedRPS > 0 {
		return state.reducedRPS
	}
	return rl.rpsFor(host)
}

func (rl *RateLimiter) backoffRemaining(host string) time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	state, ok := rl.backoff[host]
	if !ok {
		return 0
	}
	return state.current - time.Since(state.lastError)
}

// hostOf returns the host name of rawURL without port.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
