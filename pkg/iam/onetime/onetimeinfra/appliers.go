package onetimeinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/member/memberinfra"
	"github.com/Abraxas-365/gatekit/pkg/iam/user"
	"github.com/Abraxas-365/gatekit/pkg/iam/user/userinfra"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresStateApplier aplica, dentro de la transacción de consumo, el
// cambio de estado que el token autoriza. Si el cambio falla, el rollback
// deja el token intacto y reutilizable.
type PostgresStateApplier struct{}

// NewPostgresStateApplier crea una nueva instancia del applier.
func NewPostgresStateApplier() *PostgresStateApplier {
	return &PostgresStateApplier{}
}

// ApplyPasswordReset actualiza la contraseña del usuario en la misma
// transacción que limpia el token.
func (a *PostgresStateApplier) ApplyPasswordReset(ctx context.Context, tx *sqlx.Tx, email, passwordHash string) error {
	return userinfra.UpdatePasswordTx(ctx, tx, email, passwordHash)
}

// ApplyInviteAcceptance crea la cuenta del usuario si no existe y activa la
// membresía pendiente, todo dentro de la transacción de consumo.
func (a *PostgresStateApplier) ApplyInviteAcceptance(ctx context.Context, tx *sqlx.Tx, tenantID kernel.TenantID, email, name, passwordHash string) (kernel.UserID, error) {
	var u user.User
	err := tx.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		u = user.User{
			ID:           kernel.NewUserID(uuid.NewString()),
			Email:        email,
			Name:         name,
			PasswordHash: passwordHash,
			CreatedAt:    time.Now(),
		}
		if err := userinfra.InsertTx(ctx, tx, u); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", errx.Wrap(err, "failed to look up user in invite tx", errx.TypeInternal)
	}

	if err := memberinfra.ActivateTx(ctx, tx, tenantID, email, u.ID); err != nil {
		return "", err
	}
	return u.ID, nil
}
