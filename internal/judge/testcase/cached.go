package testcase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/internal/judge/model"
)

const (
	headerKeyPrefix = "testcase:header:"
	caseKeyPrefix   = "testcase:case:"

	defaultCacheTTL = 6 * time.Hour
)

// CachedProvider is a read-through Redis cache in front of another Provider.
// Test case data is immutable per problem, so entries only expire by TTL.
type CachedProvider struct {
	next  Provider
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, c cache.Cache, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedProvider) ListHeaders(ctx context.Context, problemID string) ([]model.TestCaseHeader, error) {
	return cache.GetWithCached(
		ctx,
		p.cache,
		headerKeyPrefix+problemID,
		cache.JitterTTL(p.ttl),
		0,
		func(h []model.TestCaseHeader) bool { return len(h) == 0 },
		marshalJSON[[]model.TestCaseHeader],
		unmarshalJSON[[]model.TestCaseHeader],
		func(ctx context.Context) ([]model.TestCaseHeader, error) {
			return p.next.ListHeaders(ctx, problemID)
		},
	)
}

func (p *CachedProvider) Fetch(ctx context.Context, problemID string, serial int) (*model.TestCase, error) {
	return cache.GetWithCached(
		ctx,
		p.cache,
		fmt.Sprintf("%s%s:%d", caseKeyPrefix, problemID, serial),
		cache.JitterTTL(p.ttl),
		0,
		func(tc *model.TestCase) bool { return tc == nil },
		marshalJSON[*model.TestCase],
		unmarshalJSON[*model.TestCase],
		func(ctx context.Context) (*model.TestCase, error) {
			return p.next.Fetch(ctx, problemID, serial)
		},
	)
}

func marshalJSON[T any](v T) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalJSON[T any](raw string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(raw), &v)
	return v, err
}
