package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Throttle budgets login attempts per key. Attempt spends one unit and
// returns ErrTooManyAttempts once the budget is gone; deciding and recording
// happen as one step. Backend faults are wrapped in ErrThrottleUnavailable.
type Throttle interface {
	Attempt(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// LoginThrottle pairs a tight budget per account and client address with a
// looser one per client address. Either may be nil.
type LoginThrottle struct {
	Account Throttle
	Client  Throttle
}

func accountKey(email, client string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + client
}

// attemptScript counts an attempt and makes sure the counter carries a TTL,
// so a key can never outlive its window.
var attemptScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisThrottle counts attempts in a fixed window shared by every replica.
type RedisThrottle struct {
	client      redis.UniversalClient
	prefix      string
	maxAttempts int
	window      time.Duration
}

func NewRedisThrottle(client redis.UniversalClient, prefix string, maxAttempts int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{client: client, prefix: prefix, maxAttempts: maxAttempts, window: window}
}

func (t *RedisThrottle) key(k string) string {
	return t.prefix + k
}

func (t *RedisThrottle) Attempt(ctx context.Context, key string) error {
	count, err := attemptScript.Run(ctx, t.client, []string{t.key(key)}, t.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
	}
	if count > int64(t.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrThrottleUnavailable, err)
	}
	return nil
}

const localThrottleSweepAt = 10000

// LocalThrottle is the single-process fallback: a token bucket per key that
// holds maxAttempts attempts and refills completely over one window.
type LocalThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
	now      func() time.Time
}

func NewLocalThrottle(maxAttempts int, window time.Duration) *LocalThrottle {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &LocalThrottle{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(maxAttempts)),
		burst:    maxAttempts,
		now:      time.Now,
	}
}

func (t *LocalThrottle) Attempt(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	lim, ok := t.limiters[key]
	if !ok {
		if len(t.limiters) >= localThrottleSweepAt {
			t.sweep(now)
		}
		lim = rate.NewLimiter(t.every, t.burst)
		t.limiters[key] = lim
	}
	if !lim.AllowN(now, 1) {
		return ErrTooManyAttempts
	}
	return nil
}

func (t *LocalThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limiters, key)
	return nil
}

// sweep drops buckets that have refilled, they carry no state.
func (t *LocalThrottle) sweep(now time.Time) {
	for k, lim := range t.limiters {
		if lim.TokensAt(now) >= float64(t.burst) {
			delete(t.limiters, k)
		}
	}
}
