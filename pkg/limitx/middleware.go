package limitx

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// Config defines the quota applied by a rate limiting middleware.
type Config struct {
	// Requests is the number of requests allowed per window
	Requests int
	// Window is the fixed time window the quota applies to
	Window time.Duration
}

// Common rate limit profiles for different endpoint types.
// These can be overridden via environment variables (see init() below).
var (
	// StrictLimit for authentication and token endpoints (brute force
	// prevention). Override with: RATELIMIT_STRICT_REQUESTS,
	// RATELIMIT_STRICT_WINDOW_SEC
	StrictLimit = Config{Requests: 5, Window: time.Minute}

	// ModerateLimit for authenticated operations.
	// Override with: RATELIMIT_MODERATE_REQUESTS, RATELIMIT_MODERATE_WINDOW_SEC
	ModerateLimit = Config{Requests: 20, Window: time.Minute}

	// LenientLimit for less sensitive operations.
	// Override with: RATELIMIT_LENIENT_REQUESTS, RATELIMIT_LENIENT_WINDOW_SEC
	LenientLimit = Config{Requests: 100, Window: time.Minute}

	// PublicLimit for public read-only endpoints.
	// Override with: RATELIMIT_PUBLIC_REQUESTS, RATELIMIT_PUBLIC_WINDOW_SEC
	PublicLimit = Config{Requests: 1000, Window: time.Minute}
)

func init() {
	StrictLimit = ParseConfigFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseConfigFromEnv("MODERATE", ModerateLimit)
	LenientLimit = ParseConfigFromEnv("LENIENT", LenientLimit)
	PublicLimit = ParseConfigFromEnv("PUBLIC", PublicLimit)
}

// ParseConfigFromEnv reads a quota from environment variables following the
// pattern RATELIMIT_{prefix}_{field}, e.g. RATELIMIT_STRICT_REQUESTS and
// RATELIMIT_STRICT_WINDOW_SEC. Missing or invalid values keep the default.
func ParseConfigFromEnv(prefix string, defaultConfig Config) Config {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.Requests = requests
		}
	}
	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}
	return config
}

// KeyExtractor derives the quota key from the request (IP, actor, route).
type KeyExtractor func(*fiber.Ctx) string

// IPKey keys the quota by client IP. Fiber already resolves proxy headers
// when the app is configured with trusted proxies.
func IPKey(c *fiber.Ctx) string {
	return c.IP()
}

// RouteKey keys the quota by request path.
func RouteKey(c *fiber.Ctx) string {
	return c.Path()
}

// LocalsKey keys the quota by a string stored in the request locals, e.g.
// the authenticated user's email set by the authorization middleware.
func LocalsKey(name string) KeyExtractor {
	return func(c *fiber.Ctx) string {
		if v, ok := c.Locals(name).(string); ok {
			return v
		}
		return ""
	}
}

// CompositeKey joins multiple extractors with a separator, skipping the
// ones that produce nothing. CompositeKey(":", IPKey, RouteKey) yields keys
// like "203.0.113.9:/auth/login".
func CompositeKey(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(c *fiber.Ctx) string {
		var parts []string
		for _, extract := range extractors {
			if key := extract(c); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// Middleware creates a fiber handler enforcing the quota per extracted key.
// Denials answer 429 with a Retry-After header; every response carries the
// X-RateLimit-Limit and X-RateLimit-Remaining headers. A request whose key
// cannot be extracted is allowed and logged rather than collapsed into a
// shared bucket.
func Middleware(limiter *Limiter, config Config, keyFn KeyExtractor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := keyFn(c)
		if key == "" {
			logx.WithField("path", c.Path()).Warn("rate limit: unable to extract key, allowing request")
			return c.Next()
		}

		decision, err := limiter.Check(c.UserContext(), key, config.Requests, config.Window)
		if err != nil {
			xerr := errx.FromError(err)
			return c.Status(xerr.HTTPStatus).JSON(xerr.ToHTTPResponse())
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		if !decision.Allowed {
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
			xerr := ErrRateLimited(decision.RetryAfterSeconds)
			return c.Status(xerr.HTTPStatus).JSON(xerr.ToHTTPResponse())
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		return c.Next()
	}
}
