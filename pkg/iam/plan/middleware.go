package plan

import (
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam"
	"github.com/Abraxas-365/gatekit/pkg/iam/authz"
	"github.com/Abraxas-365/gatekit/pkg/iam/tenant"
	"github.com/Abraxas-365/gatekit/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// Middleware gatea rutas por feature según el plan del tenant del actor.
// Corre después del middleware de autorización: necesita el actor resuelto
// para saber de qué tenant leer el plan.
type Middleware struct {
	tenants tenant.Repository
}

// NewMiddleware crea un nuevo middleware de plan
func NewMiddleware(tenants tenant.Repository) *Middleware {
	return &Middleware{tenants: tenants}
}

// RequireFeature middleware que niega la ruta si el plan actual del tenant
// no habilita la feature. El plan se lee de storage en cada request, nunca
// de la sesión: un downgrade de billing aplica de inmediato.
func (mw *Middleware) RequireFeature(f Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := authz.GetAuthContext(c)
		if !ok {
			return writeError(c, iam.ErrUnauthenticated())
		}

		raw, err := mw.tenants.GetPlan(c.UserContext(), actor.TenantID)
		if err != nil {
			if errx.FromError(err).IsType(errx.TypeNotFound) {
				// tenant sin fila de plan: opera como free
				raw = ""
			} else {
				return writeError(c, iam.ErrStorageError(err))
			}
		}

		key := Normalize(raw)
		decision := RequireFeature(key, f)
		if !decision.Allowed {
			logx.WithFields(logx.Fields{
				"tenant_id": actor.TenantID.String(),
				"plan":      string(key),
				"feature":   string(f),
				"reason":    decision.ReasonCode,
			}).Info("feature denied by plan policy")
			return writeError(c, ErrFeatureNotAllowed(decision, f))
		}
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, err error) error {
	xerr := errx.FromError(err)
	return c.Status(xerr.HTTPStatus).JSON(xerr.ToHTTPResponse())
}
