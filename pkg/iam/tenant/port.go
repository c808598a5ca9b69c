package tenant

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// Repository define el contrato para la persistencia de tenants
type Repository interface {
	// FindByID busca un tenant por ID
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)

	// GetPlan devuelve el string de plan crudo del tenant
	GetPlan(ctx context.Context, id kernel.TenantID) (string, error)

	// Save inserta un nuevo tenant
	Save(ctx context.Context, t Tenant) error
}
