package member

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// Repository define el contrato para la persistencia de membresías
type Repository interface {
	// FindByIdentity busca la membresía por (tenant, email), como la
	// resuelve el gate de autorización a partir de la identidad firmada
	FindByIdentity(ctx context.Context, tenantID kernel.TenantID, email string) (*Membership, error)

	// FindByUser busca la membresía por (tenant, usuario)
	FindByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) (*Membership, error)

	// FindByTenant lista todas las membresías de un tenant
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*Membership, error)

	// Save inserta una nueva membresía
	Save(ctx context.Context, m Membership) error

	// UpdateStatus actualiza el estado de una membresía
	UpdateStatus(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, status Status) error
}
