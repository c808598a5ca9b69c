package limitx_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/limitx"
	"github.com/gofiber/fiber/v2"
)

// fixedClock is a manually advanced clock shared by limiter tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter() (*limitx.Limiter, *fixedClock) {
	clock := newFixedClock()
	return limitx.NewLimiter(limitx.NewMemoryCounter()).WithClock(clock.Now), clock
}

func TestCheckSequentialQuota(t *testing.T) {
	limiter, _ := newLimiter()
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		d, err := limiter.Check(ctx, "actor:route", 20, time.Minute)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("check %d should be allowed", i)
		}
		if d.Remaining != 20-i {
			t.Fatalf("check %d: remaining = %d, want %d", i, d.Remaining, 20-i)
		}
	}

	d, err := limiter.Check(ctx, "actor:route", 20, time.Minute)
	if err != nil {
		t.Fatalf("21st check: %v", err)
	}
	if d.Allowed {
		t.Fatal("21st check should be denied")
	}
	if d.RetryAfterSeconds < 1 {
		t.Fatalf("retry after = %d, want >= 1", d.RetryAfterSeconds)
	}
}

func TestCheckWindowRolloverDiscardsStaleCounter(t *testing.T) {
	limiter, clock := newLimiter()
	ctx := context.Background()

	for i := 0; i < 21; i++ {
		if _, err := limiter.Check(ctx, "k", 20, time.Minute); err != nil {
			t.Fatalf("warmup check: %v", err)
		}
	}

	clock.Advance(time.Minute)

	d, err := limiter.Check(ctx, "k", 20, time.Minute)
	if err != nil {
		t.Fatalf("post-rollover check: %v", err)
	}
	if !d.Allowed {
		t.Fatal("first check of the new window should be allowed")
	}
	if d.Remaining != 19 {
		t.Fatalf("remaining = %d, want 19: the stale counter must be discarded, not accumulated", d.Remaining)
	}
}

func TestCheckKeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := limiter.Check(ctx, "a", 5, time.Minute); err != nil {
			t.Fatalf("check a: %v", err)
		}
	}
	if d, _ := limiter.Check(ctx, "a", 5, time.Minute); d.Allowed {
		t.Fatal("key a should be exhausted")
	}

	d, err := limiter.Check(ctx, "b", 5, time.Minute)
	if err != nil {
		t.Fatalf("check b: %v", err)
	}
	if !d.Allowed || d.Remaining != 4 {
		t.Fatalf("key b must not share key a's counter: %+v", d)
	}
}

func TestCheckConcurrentAdmitsExactlyLimit(t *testing.T) {
	limiter, _ := newLimiter()
	ctx := context.Background()

	const limit = 20
	const workers = 100

	var allowed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			d, err := limiter.Check(ctx, "hot-key", limit, time.Minute)
			if err != nil {
				t.Errorf("concurrent check: %v", err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != limit {
		t.Fatalf("admitted %d requests, want exactly %d", got, limit)
	}
}

// failingCounter simulates a broken storage backend.
type failingCounter struct{}

func (failingCounter) Increment(context.Context, string, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestCheckStorageFailurePropagates(t *testing.T) {
	limiter := limitx.NewLimiter(failingCounter{})

	d, err := limiter.Check(context.Background(), "k", 20, time.Minute)
	if err == nil {
		t.Fatal("storage failure must surface as an error, not a decision")
	}
	if d.Allowed {
		t.Fatal("a failed check must not report allowed")
	}
}

func TestMiddlewareHeadersAndDenial(t *testing.T) {
	limiter, _ := newLimiter()
	app := fiber.New()
	cfg := limitx.Config{Requests: 2, Window: time.Minute}
	app.Get("/ping", limitx.Middleware(limiter, cfg, limitx.RouteKey), func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: status %d", i, resp.StatusCode)
		}
		if got := resp.Header.Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("X-RateLimit-Limit = %q", got)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("denied request: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("denial must carry Retry-After")
	}
	if got := resp.Header.Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q", got)
	}
}

func TestCompositeKey(t *testing.T) {
	app := fiber.New()
	var captured string
	keyFn := limitx.CompositeKey(":", limitx.IPKey, limitx.RouteKey)
	app.Get("/r", func(c *fiber.Ctx) error {
		captured = keyFn(c)
		return c.SendString("ok")
	})

	if _, err := app.Test(httptest.NewRequest("GET", "/r", nil)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if captured == "" || captured == ":" {
		t.Fatalf("composite key not built: %q", captured)
	}
}
