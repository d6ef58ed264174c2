package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/authorstack/authorstack/internal/clock"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Deletes the sync key only while it still carries the caller's lease id, so
// a lease that outlived its ttl cannot drop a newer holder's lock.
const syncReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrSyncLockTarget = errors.New("sync lock needs a user and a platform")
	ErrSyncLockTTL    = errors.New("sync lock ttl must be positive")
)

// SyncLockKey names the lock held while one user's platform is syncing.
func SyncLockKey(userID, platform string) string {
	return fmt.Sprintf("authorstack:lock:sync:%s:%s", userID, platform)
}

// SyncLock allows one running sync per user and platform across replicas.
// Acquire returns a nil lease and no error when another sync holds the pair.
type SyncLock interface {
	Acquire(ctx context.Context, userID, platform string, ttl time.Duration) (*Lease, error)
}

// Lease is a held sync lock. It lapses on its own after the ttl given to
// Acquire.
type Lease struct {
	UserID    string
	Platform  string
	ExpiresAt time.Time

	id      string
	release func(ctx context.Context, key, id string) error
}

func (l *Lease) Key() string {
	return SyncLockKey(l.UserID, l.Platform)
}

// Release frees the pair unless the lease already lapsed and someone else
// took it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.release == nil {
		return nil
	}
	return l.release(ctx, l.Key(), l.id)
}

func syncTarget(userID, platform string, ttl time.Duration) (string, string, error) {
	userID, platform = strings.TrimSpace(userID), strings.TrimSpace(platform)
	if userID == "" || platform == "" {
		return "", "", ErrSyncLockTarget
	}
	if ttl <= 0 {
		return "", "", ErrSyncLockTTL
	}
	return userID, platform, nil
}

type RedisSyncLock struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisSyncLock(client *redis.Client) *RedisSyncLock {
	if client == nil {
		return nil
	}
	return &RedisSyncLock{client: client, script: redis.NewScript(syncReleaseScript)}
}

func (l *RedisSyncLock) Acquire(ctx context.Context, userID, platform string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("sync lock not configured")
	}
	userID, platform, err := syncTarget(userID, platform, ttl)
	if err != nil {
		return nil, err
	}

	lease := &Lease{UserID: userID, Platform: platform, id: uuid.NewString(), release: l.release}
	ok, err := l.client.SetNX(ctx, lease.Key(), lease.id, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	lease.ExpiresAt = time.Now().Add(ttl)
	return lease, nil
}

func (l *RedisSyncLock) release(ctx context.Context, key, id string) error {
	return l.script.Run(ctx, l.client, []string{key}, id).Err()
}

// MemorySyncLock keeps leases in process; only correct for one replica.
type MemorySyncLock struct {
	mu     sync.Mutex
	clock  clock.Clock
	leases map[string]*Lease
}

func NewMemorySyncLock(clk clock.Clock) *MemorySyncLock {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemorySyncLock{clock: clk, leases: make(map[string]*Lease)}
}

func (l *MemorySyncLock) Acquire(_ context.Context, userID, platform string, ttl time.Duration) (*Lease, error) {
	userID, platform, err := syncTarget(userID, platform, ttl)
	if err != nil {
		return nil, err
	}
	key := SyncLockKey(userID, platform)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if current, ok := l.leases[key]; ok && now.Before(current.ExpiresAt) {
		return nil, nil
	}
	lease := &Lease{
		UserID:    userID,
		Platform:  platform,
		ExpiresAt: now.Add(ttl),
		id:        uuid.NewString(),
		release:   l.release,
	}
	l.leases[key] = lease
	return lease, nil
}

func (l *MemorySyncLock) release(_ context.Context, key, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.leases[key]; ok && current.id == id {
		delete(l.leases, key)
	}
	return nil
}
