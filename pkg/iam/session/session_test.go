package session_test

import (
	"testing"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/gofiber/fiber/v2"
)

func newManager(ttl time.Duration) *session.Manager {
	signer := cryptox.NewIdentitySigner("test-session-key", "gatekit-test")
	return session.NewManager(signer, ttl, false)
}

func TestSession_RoundTrip(t *testing.T) {
	m := newManager(time.Hour)

	value, err := m.Issue("tenant-1", "ana@acme.com")
	if err != nil {
		t.Fatal(err)
	}

	identity, ok := m.Read(value)
	if !ok {
		t.Fatal("expected identity from freshly issued session")
	}
	if identity.TenantID != "tenant-1" || identity.Email != "ana@acme.com" {
		t.Fatalf("identity mismatch: %+v", identity)
	}
}

func TestSession_ExpiredReturnsNone(t *testing.T) {
	m := newManager(-time.Minute)

	value, err := m.Issue("tenant-1", "ana@acme.com")
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Read(value); ok {
		t.Fatal("expired session yielded an identity")
	}
}

func TestSession_UniformFailures(t *testing.T) {
	m := newManager(time.Hour)

	// Missing, garbage, and tampered values all read the same: no identity,
	// no error, no distinguishable cause.
	for _, value := range []string{"", "not-a-token", "a.b.c"} {
		if _, ok := m.Read(value); ok {
			t.Fatalf("malformed value %q yielded an identity", value)
		}
	}

	value, _ := m.Issue("tenant-1", "ana@acme.com")
	tampered := value[:len(value)-2] + "xx"
	if _, ok := m.Read(tampered); ok {
		t.Fatal("tampered session yielded an identity")
	}
}

func TestSession_CookieAttributes(t *testing.T) {
	m := newManager(time.Hour)

	cookie := m.Cookie("some-value")
	if cookie.Name != session.CookieName {
		t.Fatalf("unexpected cookie name %q", cookie.Name)
	}
	if !cookie.HTTPOnly {
		t.Fatal("session cookie must be http-only")
	}
	if cookie.SameSite != fiber.CookieSameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %q", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Fatalf("expected root path, got %q", cookie.Path)
	}
	if cookie.MaxAge != 3600 {
		t.Fatalf("expected max-age matching validity, got %d", cookie.MaxAge)
	}

	clearing := m.ClearCookie()
	if clearing.MaxAge >= 0 {
		t.Fatal("clearing cookie must expire immediately")
	}
	if clearing.Value != "" {
		t.Fatal("clearing cookie must carry no value")
	}
}
