package memberinfra

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresMembershipRepository es la implementación en PostgreSQL de member.Repository.
type PostgresMembershipRepository struct {
	db *sqlx.DB
}

// NewPostgresMembershipRepository crea una nueva instancia del repositorio.
func NewPostgresMembershipRepository(db *sqlx.DB) member.Repository {
	return &PostgresMembershipRepository{db: db}
}

// EnsureSchema crea la tabla de membresías si no existe. Se invoca una sola
// vez, explícitamente, durante el arranque del contenedor.
//
// La clave primaria es (tenant_id, email): una invitación pendiente existe
// antes de que exista la cuenta del usuario, así que user_id queda vacío
// hasta que la invitación se acepta.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS members (
			tenant_id  TEXT NOT NULL,
			user_id    TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT 'member',
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, email)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS members_tenant_user_idx
			ON members (tenant_id, user_id) WHERE user_id <> ''`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errx.Wrap(err, "failed to ensure members schema", errx.TypeInternal)
	}
	return nil
}

// FindByIdentity busca la membresía por (tenant, email).
func (r *PostgresMembershipRepository) FindByIdentity(ctx context.Context, tenantID kernel.TenantID, email string) (*member.Membership, error) {
	var m member.Membership
	query := `SELECT * FROM members WHERE tenant_id = $1 AND email = $2`
	err := r.db.GetContext(ctx, &m, query, tenantID.String(), email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, member.ErrMemberNotFound()
		}
		return nil, errx.Wrap(err, "failed to find membership by identity", errx.TypeInternal)
	}
	return &m, nil
}

// FindByUser busca la membresía por (tenant, usuario).
func (r *PostgresMembershipRepository) FindByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) (*member.Membership, error) {
	var m member.Membership
	query := `SELECT * FROM members WHERE tenant_id = $1 AND user_id = $2`
	err := r.db.GetContext(ctx, &m, query, tenantID.String(), userID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, member.ErrMemberNotFound()
		}
		return nil, errx.Wrap(err, "failed to find membership by user", errx.TypeInternal)
	}
	return &m, nil
}

// FindByTenant lista todas las membresías de un tenant.
func (r *PostgresMembershipRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*member.Membership, error) {
	var ms []*member.Membership
	query := `SELECT * FROM members WHERE tenant_id = $1 ORDER BY created_at`
	err := r.db.SelectContext(ctx, &ms, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find memberships by tenant", errx.TypeInternal)
	}
	return ms, nil
}

// Save inserta una nueva membresía.
func (r *PostgresMembershipRepository) Save(ctx context.Context, m member.Membership) error {
	query := `
		INSERT INTO members (tenant_id, user_id, email, role, status, created_at)
		VALUES (:tenant_id, :user_id, :email, :role, :status, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return member.ErrAlreadyExists().WithDetail("email", m.Email)
		}
		return errx.Wrap(err, "failed to save membership", errx.TypeInternal).
			WithDetail("tenant_id", m.TenantID)
	}
	return nil
}

// UpdateStatus actualiza el estado de una membresía.
func (r *PostgresMembershipRepository) UpdateStatus(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, status member.Status) error {
	query := `UPDATE members SET status = $3 WHERE tenant_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, tenantID.String(), userID.String(), string(status))
	if err != nil {
		return errx.Wrap(err, "failed to update membership status", errx.TypeInternal)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on status update", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return member.ErrMemberNotFound()
	}
	return nil
}

// InsertTx inserta una membresía dentro de una transacción existente.
func InsertTx(ctx context.Context, tx *sqlx.Tx, m member.Membership) error {
	query := `
		INSERT INTO members (tenant_id, user_id, email, role, status, created_at)
		VALUES (:tenant_id, :user_id, :email, :role, :status, :created_at)`

	if _, err := tx.NamedExecContext(ctx, query, m); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return member.ErrAlreadyExists().WithDetail("email", m.Email)
		}
		return errx.Wrap(err, "failed to insert membership in tx", errx.TypeInternal)
	}
	return nil
}

// ActivateTx activa una membresía pendiente dentro de una transacción
// existente, asignándole el usuario que aceptó la invitación. Lo usa la
// aceptación de invitaciones para que la activación y el consumo del token
// queden en la misma unidad atómica.
func ActivateTx(ctx context.Context, tx *sqlx.Tx, tenantID kernel.TenantID, email string, userID kernel.UserID) error {
	query := `
		UPDATE members SET user_id = $3, status = 'active'
		WHERE tenant_id = $1 AND email = $2`
	result, err := tx.ExecContext(ctx, query, tenantID.String(), email, userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to activate membership in tx", errx.TypeInternal)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on activation", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return member.ErrMemberNotFound()
	}
	return nil
}
