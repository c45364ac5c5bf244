package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestRedisThrottleAcquire(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedisClient(t)

	throttle, err := newRedisThrottle(rdb, 2*time.Second, time.Now, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisThrottle() error = %v", err)
	}

	allowed, err := throttle.Acquire(context.Background(), "dispensing")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !allowed {
		t.Fatal("first round should be allowed")
	}

	allowed, err = throttle.Acquire(context.Background(), "dispensing")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if allowed {
		t.Fatal("second round within the interval should be refused")
	}

	mr.FastForward(2 * time.Second)
	allowed, err = throttle.Acquire(context.Background(), "dispensing")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !allowed {
		t.Fatal("round after the interval should be allowed")
	}
}

func TestRedisThrottleAcquirePerScope(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedisClient(t)

	throttle, err := newRedisThrottle(rdb, 2*time.Second, time.Now, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisThrottle() error = %v", err)
	}

	allowed, err := throttle.Acquire(context.Background(), "dispensing")
	if err != nil {
		t.Fatalf("Acquire(dispensing) error = %v", err)
	}
	if !allowed {
		t.Fatal("dispensing should be allowed on first round")
	}

	allowed, err = throttle.Acquire(context.Background(), "transfers")
	if err != nil {
		t.Fatalf("Acquire(transfers) error = %v", err)
	}
	if !allowed {
		t.Fatal("transfers should be allowed on first round")
	}

	allowed, err = throttle.Acquire(context.Background(), "dispensing")
	if err != nil {
		t.Fatalf("Acquire(dispensing) error = %v", err)
	}
	if allowed {
		t.Fatal("dispensing second round should be refused")
	}
}

func TestRedisThrottleWait(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedisClient(t)

	sleepCalls := 0
	throttle, err := newRedisThrottle(
		rdb,
		2*time.Second,
		time.Now,
		func(ctx context.Context, d time.Duration) error {
			sleepCalls++
			mr.FastForward(2 * time.Second)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisThrottle() error = %v", err)
	}

	allowed, err := throttle.Acquire(context.Background(), "purchases")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first round to be allowed")
	}

	if err := throttle.Wait(context.Background(), "purchases"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if sleepCalls == 0 {
		t.Fatal("expected Wait() to sleep at least once")
	}
}

func TestRedisThrottleWaitContextDeadline(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedisClient(t)

	throttle, err := newRedisThrottle(rdb, time.Minute, time.Now, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisThrottle() error = %v", err)
	}

	allowed, err := throttle.Acquire(context.Background(), "dispensing")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !allowed {
		t.Fatal("expected first round to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err = throttle.Wait(ctx, "dispensing")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func newTestRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return mr, rdb
}
