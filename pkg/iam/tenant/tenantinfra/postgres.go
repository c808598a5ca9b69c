package tenantinfra

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/tenant"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresTenantRepository es la implementación en PostgreSQL de tenant.Repository.
type PostgresTenantRepository struct {
	db *sqlx.DB
}

// NewPostgresTenantRepository crea una nueva instancia del repositorio.
func NewPostgresTenantRepository(db *sqlx.DB) tenant.Repository {
	return &PostgresTenantRepository{db: db}
}

// EnsureSchema crea la tabla de tenants si no existe.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			plan       TEXT NOT NULL DEFAULT 'free',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errx.Wrap(err, "failed to ensure tenants schema", errx.TypeInternal)
	}
	return nil
}

// FindByID busca un tenant por ID.
func (r *PostgresTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	var t tenant.Tenant
	query := `SELECT * FROM tenants WHERE id = $1`
	err := r.db.GetContext(ctx, &t, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrTenantNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant by ID", errx.TypeInternal)
	}
	return &t, nil
}

// GetPlan devuelve el string de plan crudo del tenant.
func (r *PostgresTenantRepository) GetPlan(ctx context.Context, id kernel.TenantID) (string, error) {
	var plan string
	query := `SELECT plan FROM tenants WHERE id = $1`
	err := r.db.GetContext(ctx, &plan, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return "", tenant.ErrTenantNotFound()
		}
		return "", errx.Wrap(err, "failed to get tenant plan", errx.TypeInternal)
	}
	return plan, nil
}

// Save inserta un nuevo tenant.
func (r *PostgresTenantRepository) Save(ctx context.Context, t tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, plan, created_at)
		VALUES (:id, :name, :plan, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return errx.Wrap(err, "failed to save tenant", errx.TypeInternal).
			WithDetail("tenant_id", t.ID)
	}
	return nil
}
