package onetime

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ApplyFunc corre dentro de la transacción de consumo. El cambio de estado
// que el token autoriza (p.ej. actualizar la contraseña) se aplica acá para
// que commitee junto con la limpieza del token: un consumo parcialmente
// aplicado nunca deja el token válido.
type ApplyFunc func(ctx context.Context, tx *sqlx.Tx, g *Grant) error

// Repository define el contrato para la persistencia de grants
type Repository interface {
	// Upsert persiste el grant, pisando cualquier token anterior no
	// consumido del mismo sujeto
	Upsert(ctx context.Context, g Grant) error

	// Consume busca el grant por digest, valida expiración, limpia
	// hash+expiración y ejecuta apply, todo en una única unidad atómica.
	// Devuelve INVALID_OR_EXPIRED si no hay match usable.
	Consume(ctx context.Context, digest string, apply ApplyFunc) (*Grant, error)

	// DeleteExpired borra grants vencidos nunca consumidos (housekeeping)
	DeleteExpired(ctx context.Context) (int64, error)
}
