package session

import (
	"time"

	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

const (
	// CookieName is the session cookie carried by every authenticated request
	CookieName = "gatekit_session"

	// DefaultTTL is the fixed session validity window
	DefaultTTL = 7 * 24 * time.Hour
)

// Manager emite y valida la sesión de identidad transportada por cookie.
// No toca storage: la sesión solo prueba identidad, nunca autorización.
type Manager struct {
	signer *cryptox.IdentitySigner
	ttl    time.Duration
	secure bool
}

// NewManager crea un nuevo manager de sesiones. secure controla el flag
// Secure de la cookie (activo en producción).
func NewManager(signer *cryptox.IdentitySigner, ttl time.Duration, secure bool) *Manager {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		signer: signer,
		ttl:    ttl,
		secure: secure,
	}
}

// Issue firma un token de identidad con la validez fija del manager y
// devuelve el valor listo para transportar en la cookie.
func (m *Manager) Issue(tenantID kernel.TenantID, email string) (string, error) {
	return m.signer.SignIdentity(kernel.Identity{TenantID: tenantID, Email: email}, m.ttl)
}

// Read verifica firma y expiración del valor de cookie. Cualquier falla
// (cookie ausente, token malformado, firma inválida, expirado) se reporta
// uniformemente como "sin identidad": los callers no distinguen causas.
func (m *Manager) Read(cookieValue string) (*kernel.Identity, bool) {
	if cookieValue == "" {
		return nil, false
	}
	identity, err := m.signer.VerifyIdentity(cookieValue)
	if err != nil {
		return nil, false
	}
	return identity, true
}

// Cookie envuelve un valor de sesión en la cookie de transporte:
// http-only, same-site lax, path raíz, max-age igual a la validez.
func (m *Manager) Cookie(value string) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  time.Now().Add(m.ttl),
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// ClearCookie emite una cookie que expira la sesión inmediatamente.
func (m *Manager) ClearCookie() *fiber.Cookie {
	return &fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// ============================================================================
// Fiber conveniences
// ============================================================================

// Write emite una sesión para la identidad y la escribe en la respuesta.
func (m *Manager) Write(c *fiber.Ctx, tenantID kernel.TenantID, email string) error {
	value, err := m.Issue(tenantID, email)
	if err != nil {
		return err
	}
	c.Cookie(m.Cookie(value))
	return nil
}

// FromRequest lee la identidad desde la cookie del request.
func (m *Manager) FromRequest(c *fiber.Ctx) (*kernel.Identity, bool) {
	return m.Read(c.Cookies(CookieName))
}

// Clear escribe la instrucción de borrado de cookie en la respuesta.
func (m *Manager) Clear(c *fiber.Ctx) {
	c.Cookie(m.ClearCookie())
}
