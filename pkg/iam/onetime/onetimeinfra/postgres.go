package onetimeinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime"
	"github.com/jmoiron/sqlx"
)

// PostgresGrantRepository es la implementación en PostgreSQL de onetime.Repository.
type PostgresGrantRepository struct {
	db *sqlx.DB
}

// NewPostgresGrantRepository crea una nueva instancia del repositorio.
func NewPostgresGrantRepository(db *sqlx.DB) onetime.Repository {
	return &PostgresGrantRepository{db: db}
}

// EnsureSchema crea la tabla de grants si no existe.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS one_time_tokens (
			subject_key TEXT PRIMARY KEY,
			purpose     TEXT NOT NULL,
			token_hash  TEXT,
			expires_at  TIMESTAMPTZ,
			consumed_at TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS one_time_tokens_hash_idx
			ON one_time_tokens (token_hash) WHERE token_hash IS NOT NULL`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errx.Wrap(err, "failed to ensure one_time_tokens schema", errx.TypeInternal)
	}
	return nil
}

// Upsert persiste el grant pisando cualquier token anterior del sujeto.
func (r *PostgresGrantRepository) Upsert(ctx context.Context, g onetime.Grant) error {
	query := `
		INSERT INTO one_time_tokens (subject_key, purpose, token_hash, expires_at, consumed_at, created_at)
		VALUES (:subject_key, :purpose, :token_hash, :expires_at, NULL, :created_at)
		ON CONFLICT (subject_key) DO UPDATE SET
			purpose     = EXCLUDED.purpose,
			token_hash  = EXCLUDED.token_hash,
			expires_at  = EXCLUDED.expires_at,
			consumed_at = NULL,
			created_at  = EXCLUDED.created_at`

	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return errx.Wrap(err, "failed to upsert one-time grant", errx.TypeInternal).
			WithDetail("subject_key", g.SubjectKey)
	}
	return nil
}

// Consume busca por digest, valida y limpia el token, y aplica el cambio de
// estado del caller en la misma transacción. La fila se bloquea con FOR
// UPDATE, de modo que dos consumos concurrentes del mismo secreto se
// serializan y el segundo ve el hash ya limpio.
func (r *PostgresGrantRepository) Consume(ctx context.Context, digest string, apply onetime.ApplyFunc) (*onetime.Grant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin consume tx", errx.TypeInternal)
	}
	defer tx.Rollback()

	var g onetime.Grant
	query := `SELECT * FROM one_time_tokens WHERE token_hash = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &g, query, digest); err != nil {
		if err == sql.ErrNoRows {
			return nil, onetime.ErrInvalidOrExpired()
		}
		return nil, errx.Wrap(err, "failed to look up grant by digest", errx.TypeInternal)
	}

	// Re-chequeo en tiempo constante del digest devuelto por el índice
	if g.TokenHash == nil || !cryptox.SecureCompare(*g.TokenHash, digest) {
		return nil, onetime.ErrInvalidOrExpired()
	}
	if g.IsExpired() {
		return nil, onetime.ErrInvalidOrExpired()
	}

	now := time.Now()
	clear := `
		UPDATE one_time_tokens
		SET token_hash = NULL, expires_at = NULL, consumed_at = $2
		WHERE subject_key = $1`
	if _, err := tx.ExecContext(ctx, clear, g.SubjectKey, now); err != nil {
		return nil, errx.Wrap(err, "failed to clear consumed grant", errx.TypeInternal)
	}

	if apply != nil {
		if err := apply(ctx, tx, &g); err != nil {
			// Rollback: ni el cambio de estado ni la limpieza quedan a medias
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit consume tx", errx.TypeInternal)
	}

	g.TokenHash = nil
	g.ExpiresAt = nil
	g.ConsumedAt = &now
	return &g, nil
}

// DeleteExpired borra grants vencidos que nunca fueron consumidos.
func (r *PostgresGrantRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM one_time_tokens WHERE expires_at IS NOT NULL AND expires_at < NOW()`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete expired grants", errx.TypeInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected on cleanup", errx.TypeInternal)
	}
	return rows, nil
}
