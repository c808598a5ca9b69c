package limitx

import (
	"context"
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
)

// Counter is the atomic storage primitive behind the limiter: it bumps the
// counter for (key, windowStart) and returns the post-increment count. When
// the stored window differs from windowStart the stale counter is discarded
// and the count restarts at 1. Implementations MUST perform this as a single
// atomic operation; a read-then-write sequence admits more than limit
// requests under concurrency.
type Counter interface {
	Increment(ctx context.Context, key string, windowStart int64) (int64, error)
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed           bool `json:"allowed"`
	Remaining         int  `json:"remaining"`
	RetryAfterSeconds int  `json:"retry_after_seconds,omitempty"`
}

// Limiter enforces a fixed-window quota per key on top of a Counter.
// Windows are clock-aligned: windowStart = floor(now / window) * window,
// so concurrent callers agree on the window without coordination. Bursts of
// up to 2x the limit are possible across a window boundary; that is the
// accepted tradeoff of fixed windows.
type Limiter struct {
	counter Counter
	now     func() time.Time
}

// NewLimiter creates a limiter over the given counter backend.
func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter, now: time.Now}
}

// WithClock overrides the limiter's clock. Tests use it to cross window
// boundaries without sleeping.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check admits or denies one request for key under the given quota. The
// counter is always incremented; admission is decided by whether the
// returned count fits the limit. A denied request reports when the window
// reopens, floored at one second. Storage failures propagate: a broken
// backend is never reported as a denial.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	nowMs := l.now().UnixMilli()
	windowMs := window.Milliseconds()
	windowStart := nowMs / windowMs * windowMs

	count, err := l.counter.Increment(ctx, key, windowStart)
	if err != nil {
		return Decision{}, errx.Wrap(err, "rate limit counter failure", errx.TypeInternal).
			WithDetail("key", key)
	}

	if count > int64(limit) {
		retryMs := windowStart + windowMs - nowMs
		retry := int((retryMs + 999) / 1000)
		if retry < 1 {
			retry = 1
		}
		return Decision{Allowed: false, RetryAfterSeconds: retry}, nil
	}

	return Decision{Allowed: true, Remaining: limit - int(count)}, nil
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("LIMITX")

var (
	CodeRateLimited = ErrRegistry.Register("RATE_LIMITED", errx.TypeRateLimit, http.StatusTooManyRequests, "Too many requests")
)

// ErrRateLimited construye el error de denegación con el hint de reintento.
func ErrRateLimited(retryAfterSeconds int) *errx.Error {
	return ErrRegistry.New(CodeRateLimited).
		WithDetail("retry_after_seconds", retryAfterSeconds)
}
