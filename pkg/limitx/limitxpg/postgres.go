package limitxpg

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/jmoiron/sqlx"
)

// PostgresCounter es la implementación en PostgreSQL de limitx.Counter.
// El upsert condicional resuelve lectura, chequeo de ventana e incremento
// en una sola sentencia atómica: dos requests concurrentes sobre la misma
// clave se serializan en la fila y cada uno ve un count distinto.
type PostgresCounter struct {
	db *sqlx.DB
}

// NewPostgresCounter crea una nueva instancia del counter.
func NewPostgresCounter(db *sqlx.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

// EnsureSchema crea la tabla de contadores si no existe.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS rate_limits (
			key          TEXT PRIMARY KEY,
			window_start BIGINT NOT NULL,
			count        BIGINT NOT NULL
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errx.Wrap(err, "failed to ensure rate_limits schema", errx.TypeInternal)
	}
	return nil
}

// Increment incrementa el contador de (key, windowStart) y devuelve el
// count resultante. Una ventana vencida se descarta, nunca se acumula.
func (c *PostgresCounter) Increment(ctx context.Context, key string, windowStart int64) (int64, error) {
	query := `
		INSERT INTO rate_limits (key, window_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (key) DO UPDATE SET
			count = CASE
				WHEN rate_limits.window_start = EXCLUDED.window_start
				THEN rate_limits.count + 1
				ELSE 1
			END,
			window_start = EXCLUDED.window_start
		RETURNING count`

	var count int64
	if err := c.db.GetContext(ctx, &count, query, key, windowStart); err != nil {
		return 0, errx.Wrap(err, "failed to increment rate counter", errx.TypeInternal).
			WithDetail("key", key)
	}
	return count, nil
}
