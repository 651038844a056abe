package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(NewRedisCounter(rdb)), mr
}

func TestAllowWithinBudget(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, LoginIdentifierKey("alice"), 5, 15*time.Minute)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, LoginIdentifierKey("alice"), 5, 15*time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Fatal("6th call within window should be denied")
	}
}

func TestWindowExpiryResetsCount(t *testing.T) {
	limiter, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "gl:bob", 3, time.Minute); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}
	if allowed, _ := limiter.Allow(ctx, "gl:bob", 3, time.Minute); allowed {
		t.Fatal("over-budget call should be denied")
	}

	mr.FastForward(time.Minute + time.Second)

	allowed, err := limiter.Allow(ctx, "gl:bob", 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow after window failed: %v", err)
	}
	if !allowed {
		t.Fatal("call after window elapsed should start a fresh window")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, LoginIdentifierKey("a"), 1, time.Minute); !allowed {
		t.Fatal("first hit on key a should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, LoginIdentifierKey("a"), 1, time.Minute); allowed {
		t.Fatal("second hit on key a should be denied")
	}
	if allowed, _ := limiter.Allow(ctx, LoginIdentifierKey("b"), 1, time.Minute); !allowed {
		t.Fatal("key b has its own budget")
	}
}

func TestInvalidLimitFailsFast(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "gl:x", 0, time.Minute); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("maxRequests < 1 should return ErrInvalidLimit, got %v", err)
	}
	if _, err := limiter.Allow(ctx, "gl:x", 5, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("window <= 0 should return ErrInvalidLimit, got %v", err)
	}
}

func TestResetClearsCounter(t *testing.T) {
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := limiter.Allow(ctx, "gl:carol", 2, time.Minute); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}
	if err := limiter.Reset(ctx, "gl:carol"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if allowed, _ := limiter.Allow(ctx, "gl:carol", 2, time.Minute); !allowed {
		t.Fatal("counter should be empty after reset")
	}
}

func TestMemoryCounterConcurrentSharedKey(t *testing.T) {
	limiter := New(NewMemoryCounter())
	ctx := context.Background()

	const (
		workers = 32
		budget  = 10
	)

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			allowed, err := limiter.Allow(ctx, "gl:shared", budget, time.Minute)
			if err != nil {
				t.Errorf("Allow failed: %v", err)
				return
			}
			if allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	close(start)
	wg.Wait()

	if allowedCount != budget {
		t.Fatalf("expected exactly %d admitted, got %d", budget, allowedCount)
	}
}

func TestMemoryCounterWindowRollover(t *testing.T) {
	counter := NewMemoryCounter()
	base := time.Now()
	counter.now = func() time.Time { return base }

	limiter := New(counter)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "k", 1, time.Minute); !allowed {
		t.Fatal("first hit allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "k", 1, time.Minute); allowed {
		t.Fatal("second hit in window denied")
	}

	base = base.Add(time.Minute + time.Second)

	if allowed, _ := limiter.Allow(ctx, "k", 1, time.Minute); !allowed {
		t.Fatal("hit after window should reset the count")
	}
}

func TestMemoryCounterSweep(t *testing.T) {
	counter := NewMemoryCounter()
	base := time.Now()
	counter.now = func() time.Time { return base }

	ctx := context.Background()
	if _, err := counter.Incr(ctx, "stale", time.Minute); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}

	base = base.Add(time.Hour)
	counter.Sweep(time.Minute)

	if _, ok := counter.windows.Load("stale"); ok {
		t.Fatal("sweep should drop fully elapsed windows")
	}
}
