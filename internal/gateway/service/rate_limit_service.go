package service

import (
	"context"
	"fmt"
	"time"

	"codeduel/internal/common/cache"
	pkgerrors "codeduel/pkg/errors"
)

// RateLimitService enforces fixed-window limits using Redis counters.
type RateLimitService struct {
	cache        cache.BasicOps
	window       time.Duration
	redisTimeout time.Duration
}

func NewRateLimitService(cacheClient cache.BasicOps, window time.Duration, redisTimeout time.Duration) *RateLimitService {
	if window <= 0 {
		window = time.Minute
	}
	if redisTimeout <= 0 {
		redisTimeout = 200 * time.Millisecond
	}
	return &RateLimitService{cache: cacheClient, window: window, redisTimeout: redisTimeout}
}

// Allow counts one hit on key and fails with TooManyRequests once max is exceeded within window.
func (s *RateLimitService) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if max <= 0 {
		return nil
	}
	if s.cache == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if window <= 0 {
		window = s.window
	}

	ctxCache, cancel := context.WithTimeout(ctx, s.redisTimeout)
	defer cancel()

	count, err := s.cache.Incr(ctxCache, key)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	if count == 1 {
		if err := s.cache.Expire(ctxCache, key, window); err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
	}
	if int(count) > max {
		return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}
