package authz

import (
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// authLocalsKey es la clave de Locals donde el middleware deja el actor
const authLocalsKey = "auth"

// Middleware expone el gate como middlewares de Fiber
type Middleware struct {
	gate *Gate
}

// NewMiddleware crea un nuevo middleware de autorización
func NewMiddleware(gate *Gate) *Middleware {
	return &Middleware{gate: gate}
}

// RequireActiveMember middleware que exige membresía activa e inyecta el
// actor resuelto en el contexto del request
func (mw *Middleware) RequireActiveMember() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := mw.gate.RequireActiveMember(c.UserContext(), c.Cookies(session.CookieName))
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(authLocalsKey, actor)
		return c.Next()
	}
}

// RequireOwner middleware que exige rol owner
func (mw *Middleware) RequireOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := mw.gate.RequireOwner(c.UserContext(), c.Cookies(session.CookieName))
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(authLocalsKey, actor)
		return c.Next()
	}
}

// GetAuthContext recupera el actor inyectado por el middleware
func GetAuthContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	actor, ok := c.Locals(authLocalsKey).(*kernel.AuthContext)
	if !ok || actor == nil || !actor.IsValid() {
		return nil, false
	}
	return actor, true
}

func writeError(c *fiber.Ctx, err error) error {
	xerr := errx.FromError(err)
	return c.Status(xerr.HTTPStatus).JSON(xerr.ToHTTPResponse())
}
