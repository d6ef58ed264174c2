package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/authorstack/authorstack/internal/clock"
	redis "github.com/redis/go-redis/v9"
)

// INCR and PEXPIRE run in one script so concurrent callers can never both
// observe a count below the limit for the same slot.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// Window admits at most limit requests per key within each window.
type Window interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

type FixedWindow struct {
	client *redis.Client
	script *redis.Script
}

func NewFixedWindow(client *redis.Client) *FixedWindow {
	if client == nil {
		return nil
	}
	return &FixedWindow{client: client, script: redis.NewScript(fixedWindowScript)}
}

func (w *FixedWindow) Hit(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if w == nil || w.client == nil {
		return &Result{}, errors.New("rate limiter not configured")
	}
	if err := checkWindowArgs(key, limit, window); err != nil {
		return &Result{}, err
	}

	res, err := w.script.Run(ctx, w.client, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return &Result{}, err
	}
	if len(res) < 2 {
		return &Result{}, errors.New("invalid rate limit script response")
	}
	count := int(castToInt(res[0]))
	ttl := time.Duration(castToInt(res[1])) * time.Millisecond
	return windowResult(count, limit, ttl, time.Now()), nil
}

// MemoryWindow is a mutex-guarded fixed window counter.
type MemoryWindow struct {
	mu      sync.Mutex
	clock   clock.Clock
	windows map[string]*memoryWindowState
}

type memoryWindowState struct {
	count     int
	expiresAt time.Time
}

func NewMemoryWindow(clk clock.Clock) *MemoryWindow {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &MemoryWindow{clock: clk, windows: make(map[string]*memoryWindowState)}
}

func (m *MemoryWindow) Hit(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if err := checkWindowArgs(key, limit, window); err != nil {
		return &Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	state, ok := m.windows[key]
	if !ok || !now.Before(state.expiresAt) {
		state = &memoryWindowState{expiresAt: now.Add(window)}
		m.windows[key] = state
	}
	state.count++
	return windowResult(state.count, limit, state.expiresAt.Sub(now), now), nil
}

func checkWindowArgs(key string, limit int, window time.Duration) error {
	if key == "" {
		return errors.New("rate limiter key is empty")
	}
	if limit <= 0 {
		return errors.New("rate limiter limit must be positive")
	}
	if window <= 0 {
		return errors.New("rate limiter window must be positive")
	}
	return nil
}

func windowResult(count, limit int, ttl time.Duration, now time.Time) *Result {
	allowed := count <= limit
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(ttl),
	}
	if !allowed {
		result.RetryAfter = ttl
	}
	return result
}
