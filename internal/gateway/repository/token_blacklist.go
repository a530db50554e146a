package repository

import (
	"context"
	"time"

	"codeduel/internal/common/cache"
)

const tokenRevokedKeyPrefix = "auth:revoked:"

// TokenBlacklistRepository checks token revocation in Redis. A revoked token is
// stored under its hash until it would have expired anyway.
type TokenBlacklistRepository struct {
	cache        cache.BasicOps
	redisTimeout time.Duration
}

func NewTokenBlacklistRepository(c cache.BasicOps, redisTimeout time.Duration) *TokenBlacklistRepository {
	if redisTimeout <= 0 {
		redisTimeout = 200 * time.Millisecond
	}
	return &TokenBlacklistRepository{cache: c, redisTimeout: redisTimeout}
}

func (r *TokenBlacklistRepository) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	if tokenHash == "" || r.cache == nil {
		return false, nil
	}
	ctxCache, cancel := context.WithTimeout(ctx, r.redisTimeout)
	defer cancel()
	val, err := r.cache.Get(ctxCache, tokenRevokedKeyPrefix+tokenHash)
	if err != nil {
		return false, err
	}
	return val != "", nil
}

// Revoke blacklists tokenHash for ttl.
func (r *TokenBlacklistRepository) Revoke(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if tokenHash == "" || r.cache == nil || ttl <= 0 {
		return nil
	}
	ctxCache, cancel := context.WithTimeout(ctx, r.redisTimeout)
	defer cancel()
	return r.cache.Set(ctxCache, tokenRevokedKeyPrefix+tokenHash, "1", ttl)
}
