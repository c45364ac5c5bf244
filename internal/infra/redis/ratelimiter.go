package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/farmalink/erpbridge/internal/ratelimit"
)

const (
	defaultMinInterval = 2 * time.Second
	backoffStep        = 100 * time.Millisecond
	backoffMax         = 500 * time.Millisecond
)

// acquireScript claims the scope's slot if no round ran within the
// interval. SET NX with a TTL makes the claim and the interval one
// atomic operation.
var acquireScript = goredis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  return 1
end
return 0
`)

var _ ratelimit.Throttle = (*RedisThrottle)(nil)

// RedisThrottle is a distributed minimum-interval throttle backed by
// Redis, shared by every process submitting for the same module.
type RedisThrottle struct {
	client      *goredis.Client
	minInterval time.Duration
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	script      *goredis.Script
}

func NewRedisThrottle(client *goredis.Client, minInterval time.Duration) (*RedisThrottle, error) {
	return newRedisThrottle(client, minInterval, time.Now, sleepWithContext)
}

func newRedisThrottle(
	client *goredis.Client,
	minInterval time.Duration,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisThrottle, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisThrottle{
		client:      client,
		minInterval: minInterval,
		now:         nowFn,
		sleep:       sleepFn,
		script:      acquireScript,
	}, nil
}

func (r *RedisThrottle) Acquire(ctx context.Context, scope string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("throttle is not initialized")
	}

	normalizedScope := strings.ToLower(strings.TrimSpace(scope))
	if normalizedScope == "" {
		return false, fmt.Errorf("scope is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("throttle:%s", normalizedScope)
	result, err := r.script.Run(ctx, r.client, []string{key},
		r.now().UTC().UnixMilli(), r.minInterval.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate throttle: %w", err)
	}

	return result == 1, nil
}

func (r *RedisThrottle) Wait(ctx context.Context, scope string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := r.Acquire(ctx, scope)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
