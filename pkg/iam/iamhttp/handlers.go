package iamhttp

import (
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam"
	"github.com/Abraxas-365/gatekit/pkg/iam/authsrv"
	"github.com/Abraxas-365/gatekit/pkg/iam/authz"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime/onetimesrv"
	"github.com/Abraxas-365/gatekit/pkg/iam/plan"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/Abraxas-365/gatekit/pkg/iam/tenant"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Handlers expone el dominio IAM como rutas de Fiber: login y sesión,
// flujos de tokens de un solo uso e introspección del plan del tenant.
type Handlers struct {
	auth     *authsrv.AuthService
	tokens   *onetimesrv.TokenService
	sessions *session.Manager
	tenants  tenant.Repository
}

// NewHandlers crea los handlers HTTP de IAM.
func NewHandlers(
	auth *authsrv.AuthService,
	tokens *onetimesrv.TokenService,
	sessions *session.Manager,
	tenants tenant.Repository,
) *Handlers {
	return &Handlers{auth: auth, tokens: tokens, sessions: sessions, tenants: tenants}
}

// RegisterRoutes registra las rutas. Los handlers de rate limit llegan ya
// configurados desde el contenedor: strict para endpoints de credenciales
// y tokens, moderate para el resto.
func (h *Handlers) RegisterRoutes(app *fiber.App, mw *authz.Middleware, pm *plan.Middleware, strict, moderate fiber.Handler) {
	auth := app.Group("/auth")
	auth.Post("/login", strict, h.login)
	auth.Post("/logout", h.logout)
	auth.Get("/me", moderate, mw.RequireActiveMember(), h.me)

	auth.Post("/password-reset/request", strict, h.requestPasswordReset)
	auth.Post("/password-reset/confirm", strict, h.confirmPasswordReset)
	auth.Post("/invitations/accept", strict, h.acceptInvite)

	api := app.Group("/api/v1")
	api.Post("/invitations", moderate, mw.RequireOwner(), h.createInvite)
	api.Get("/plan", moderate, mw.RequireActiveMember(), h.currentPlan)

	// Preflight por feature: los servicios upstream hacen GET aquí antes de
	// aceptar trabajo caro. 204 si el plan lo habilita, 402/403 si no.
	features := api.Group("/features", moderate, mw.RequireActiveMember())
	features.Get("/chat", pm.RequireFeature(plan.FeatureChat), h.featureAllowed)
	features.Get("/document-upload", pm.RequireFeature(plan.FeatureDocumentUpload), h.featureAllowed)
	features.Get("/scheduling", pm.RequireFeature(plan.FeatureScheduling), h.featureAllowed)
	features.Get("/extraction", pm.RequireFeature(plan.FeatureExtraction), h.featureAllowed)
	features.Get("/media-upload", pm.RequireFeature(plan.FeatureMediaUpload), h.featureAllowed)
}

func (h *Handlers) featureAllowed(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	if req.TenantID == "" || req.Email == "" || req.Password == "" {
		return errx.Validation("tenant_id, email and password are required")
	}

	actor, cookieValue, err := h.auth.Login(c.UserContext(), kernel.NewTenantID(req.TenantID), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(h.sessions.Cookie(cookieValue))
	return c.JSON(actor)
}

func (h *Handlers) logout(c *fiber.Ctx) error {
	h.sessions.Clear(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) me(c *fiber.Ctx) error {
	actor, ok := authz.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthenticated()
	}
	return c.JSON(actor)
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

func (h *Handlers) requestPasswordReset(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	if req.Email == "" {
		return errx.Validation("email is required")
	}

	if err := h.tokens.IssuePasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	// 202 siempre: la respuesta no revela si la cuenta existe
	return c.SendStatus(fiber.StatusAccepted)
}

type passwordResetConfirm struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handlers) confirmPasswordReset(c *fiber.Ctx) error {
	var req passwordResetConfirm
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	if req.Token == "" {
		return errx.Validation("token is required")
	}

	if err := h.tokens.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type createInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handlers) createInvite(c *fiber.Ctx) error {
	actor, ok := authz.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthenticated()
	}

	var req createInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	if req.Email == "" {
		return errx.Validation("email is required")
	}
	role := member.Role(req.Role)
	if role == "" {
		role = member.RoleMember
	}
	if role != member.RoleMember && role != member.RoleOwner {
		return errx.Validation("role must be 'member' or 'owner'")
	}

	if err := h.tokens.IssueInvite(c.UserContext(), actor.TenantID, req.Email, role); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

type acceptInviteRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handlers) acceptInvite(c *fiber.Ctx) error {
	var req acceptInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("Invalid request body")
	}
	if req.Token == "" {
		return errx.Validation("token is required")
	}

	identity, err := h.tokens.AcceptInvite(c.UserContext(), req.Token, req.Name, req.Password)
	if err != nil {
		return err
	}

	// el nuevo miembro queda logueado de inmediato
	if err := h.sessions.Write(c, identity.TenantID, identity.Email); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(identity)
}

// currentPlan devuelve el plan canónico del tenant del actor y la decisión
// de la política para cada feature conocida. El frontend lo usa para
// esconder lo que el plan no habilita; la verdad sigue en el middleware.
func (h *Handlers) currentPlan(c *fiber.Ctx) error {
	actor, ok := authz.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthenticated()
	}

	raw, err := h.tenants.GetPlan(c.UserContext(), actor.TenantID)
	if err != nil {
		if !errx.FromError(err).IsType(errx.TypeNotFound) {
			return iam.ErrStorageError(err)
		}
		raw = ""
	}

	key := plan.Normalize(raw)
	features := map[string]bool{}
	for _, f := range []plan.Feature{
		plan.FeatureChat,
		plan.FeatureDocumentUpload,
		plan.FeatureScheduling,
		plan.FeatureExtraction,
		plan.FeatureMediaUpload,
	} {
		features[string(f)] = plan.RequireFeature(key, f).Allowed
	}

	return c.JSON(fiber.Map{
		"plan":     string(key),
		"features": features,
	})
}
