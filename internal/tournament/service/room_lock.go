package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codeduel/internal/common/cache"
	"codeduel/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	roomLockKeyPrefix     = "tournament:lock:"
	defaultLockTTL        = 30 * time.Second
	defaultLockWait       = 5 * time.Second
	defaultLockRetryDelay = 50 * time.Millisecond
)

// ErrLockTimeout is returned when a room lock cannot be acquired in time.
var ErrLockTimeout = errors.New("room lock wait timed out")

// RoomLocker serializes mutations per room id. The returned func releases the lock.
type RoomLocker interface {
	Lock(ctx context.Context, roomID string) (func(), error)
}

// LocalRoomLocker is an in-process keyed lock. Entries are dropped once no caller holds or waits on them.
type LocalRoomLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalRoomLocker() *LocalRoomLocker {
	return &LocalRoomLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalRoomLocker) Lock(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[roomID]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[roomID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(roomID, entry, false)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(roomID, entry, true) })
	}, nil
}

func (l *LocalRoomLocker) release(roomID string, entry *localEntry, held bool) {
	if held {
		<-entry.ch
	}
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, roomID)
	}
	l.mu.Unlock()
}

// RedisRoomLocker is a cross-process lock built on SET NX with an owner token.
type RedisRoomLocker struct {
	cache      cache.Cache
	ttl        time.Duration
	retryDelay time.Duration
}

func NewRedisRoomLocker(c cache.Cache, ttl time.Duration) *RedisRoomLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisRoomLocker{cache: c, ttl: ttl, retryDelay: defaultLockRetryDelay}
}

// Lock polls until the lock is acquired or ctx ends.
func (l *RedisRoomLocker) Lock(ctx context.Context, roomID string) (func(), error) {
	key := roomLockKeyPrefix + roomID
	owner := uuid.NewString()
	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.cache.TryLock(ctx, key, owner, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Unlock must run even when the request context is done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			released, err := l.cache.Unlock(releaseCtx, key, owner)
			if err != nil {
				logger.Warn(ctx, "release room lock failed", zap.String("room_id", roomID), zap.Error(err))
				return
			}
			if !released {
				logger.Warn(ctx, "room lock expired before release", zap.String("room_id", roomID))
			}
		})
	}, nil
}

// ChainLocker acquires every locker in order and releases in reverse.
type ChainLocker []RoomLocker

func (c ChainLocker) Lock(ctx context.Context, roomID string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, locker := range c {
		release, err := locker.Lock(ctx, roomID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// lockWithWait bounds lock acquisition by wait.
func lockWithWait(ctx context.Context, locker RoomLocker, roomID string, wait time.Duration) (func(), error) {
	if wait <= 0 {
		wait = defaultLockWait
	}
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return locker.Lock(lockCtx, roomID)
}
