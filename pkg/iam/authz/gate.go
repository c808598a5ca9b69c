package authz

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// Gate resuelve la sesión en un actor con rol y estado frescos desde
// storage y aplica las precondiciones de autorización. Leer storage en
// cada chequeo (en vez de confiar en claims cacheados) cierra la ventana
// entre un cambio de privilegios y su aplicación: cuesta una lectura por
// request.
type Gate struct {
	sessions *session.Manager
	members  member.Repository
	audit    AuditService
}

// NewGate crea un nuevo gate de autorización
func NewGate(sessions *session.Manager, members member.Repository, audit AuditService) *Gate {
	if audit == nil {
		audit = NopAuditService{}
	}
	return &Gate{
		sessions: sessions,
		members:  members,
		audit:    audit,
	}
}

// RequireActiveMember resuelve la identidad de la cookie y exige una
// membresía activa. Falla UNAUTHENTICATED si no hay identidad o no existe
// la fila (tenant, usuario); FORBIDDEN_NOT_ACTIVE si el estado no es
// active. Errores de storage se propagan como STORAGE_ERROR, nunca se
// confunden con una negación.
func (g *Gate) RequireActiveMember(ctx context.Context, cookieValue string) (*kernel.AuthContext, error) {
	identity, ok := g.sessions.Read(cookieValue)
	if !ok {
		g.audit.LogDecision(ctx, nil, "active_member", false, "no_identity")
		return nil, iam.ErrUnauthenticated()
	}

	m, err := g.resolveMembership(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !m.IsActive() {
		g.audit.LogDecision(ctx, identity, "active_member", false, "not_active")
		return nil, ErrForbiddenNotActive()
	}

	g.audit.LogDecision(ctx, identity, "active_member", true, "")
	return m.AuthContext(), nil
}

// RequireOwner exige membresía activa y rol owner.
func (g *Gate) RequireOwner(ctx context.Context, cookieValue string) (*kernel.AuthContext, error) {
	identity, ok := g.sessions.Read(cookieValue)
	if !ok {
		g.audit.LogDecision(ctx, nil, "owner", false, "no_identity")
		return nil, iam.ErrUnauthenticated()
	}

	m, err := g.resolveMembership(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !m.IsActive() {
		g.audit.LogDecision(ctx, identity, "owner", false, "not_active")
		return nil, ErrForbiddenNotActive()
	}
	if !m.IsOwner() {
		g.audit.LogDecision(ctx, identity, "owner", false, "not_owner")
		return nil, ErrForbiddenNotOwner()
	}

	g.audit.LogDecision(ctx, identity, "owner", true, "")
	return m.AuthContext(), nil
}

// resolveMembership hace el lookup fresco de la fila (tenant, usuario).
func (g *Gate) resolveMembership(ctx context.Context, identity *kernel.Identity) (*member.Membership, error) {
	m, err := g.members.FindByIdentity(ctx, identity.TenantID, identity.Email)
	if err != nil {
		var xerr *errx.Error
		if errx.As(err, &xerr) && xerr.IsType(errx.TypeNotFound) {
			// Fila ausente: mismo 401 uniforme que una sesión inválida
			g.audit.LogDecision(ctx, identity, "resolve", false, "no_membership")
			return nil, iam.ErrUnauthenticated()
		}
		return nil, iam.ErrStorageError(err)
	}
	return m, nil
}
