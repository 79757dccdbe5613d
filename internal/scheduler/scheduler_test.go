package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsImmediatelyAndOnTicker(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(nil, Job{
		Name:     "counter",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	r.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	r.Stop()

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no cycles after Stop")
}

func TestRunner_FailingCycleDoesNotStopJob(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(nil, Job{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				panic("boom")
			}
			return errors.New("still failing")
		},
	})

	r.Start(context.Background())
	defer r.Stop()
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestRunner_CycleContextBoundedByInterval(t *testing.T) {
	deadlines := make(chan time.Duration, 1)
	r := NewRunner(nil, Job{
		Name:     "deadline",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			dl, ok := ctx.Deadline()
			if ok {
				select {
				case deadlines <- time.Until(dl):
				default:
				}
			}
			return nil
		},
	})

	r.Start(context.Background())
	defer r.Stop()

	select {
	case d := <-deadlines:
		assert.Greater(t, d, 59*time.Minute)
		assert.LessOrEqual(t, d, time.Hour)
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

type stubLocker struct {
	ttl      time.Duration
	mu       sync.Mutex
	held     bool
	released int
	err      error
}

func (l *stubLocker) TTL() time.Duration { return l.ttl }

func (l *stubLocker) Acquire(_ context.Context, _ string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, ErrLockHeld
	}
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestRunner_SkipsCycleWhenLockHeld(t *testing.T) {
	var calls atomic.Int32
	job := Job{
		Name:     "locked",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	}

	held := &stubLocker{held: true}
	r := NewRunner(held, job)
	r.runCycle(context.Background(), job)
	assert.Zero(t, calls.Load())

	broken := &stubLocker{err: errors.New("redis down")}
	r = NewRunner(broken, job)
	r.runCycle(context.Background(), job)
	assert.Zero(t, calls.Load())

	free := &stubLocker{}
	r = NewRunner(free, job)
	r.runCycle(context.Background(), job)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, free.released)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	require.NoError(t, client.Del(ctx, lockKeyPrefix+"test").Err())

	first := NewRedisLocker(client, time.Minute)
	second := NewRedisLocker(client, time.Minute)

	release, err := first.Acquire(ctx, "test")
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "test")
	assert.ErrorIs(t, err, ErrLockHeld)

	release()
	release2, err := second.Acquire(ctx, "test")
	require.NoError(t, err)

	// A stale release must not drop a lock now owned by another instance.
	release()
	_, err = first.Acquire(ctx, "test")
	assert.ErrorIs(t, err, ErrLockHeld)
	release2()
}

func TestRunner_CycleDeadlineWithinLockTTL(t *testing.T) {
	var remaining time.Duration
	job := Job{
		Name:     "invoice-sync",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			dl, ok := ctx.Deadline()
			require.True(t, ok)
			remaining = time.Until(dl)
			return nil
		},
	}

	r := NewRunner(&stubLocker{ttl: 4 * time.Minute}, job)
	r.runCycle(context.Background(), job)
	assert.LessOrEqual(t, remaining, 4*time.Minute)
	assert.Greater(t, remaining, 3*time.Minute)

	r = NewRunner(&stubLocker{ttl: 10 * time.Minute}, job)
	r.runCycle(context.Background(), job)
	assert.LessOrEqual(t, remaining, 5*time.Minute)
	assert.Greater(t, remaining, 4*time.Minute)
}
