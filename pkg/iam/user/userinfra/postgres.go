package userinfra

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/user"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresUserRepository es la implementación en PostgreSQL de user.Repository.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository crea una nueva instancia del repositorio.
func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

// EnsureSchema crea la tabla de usuarios si no existe.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errx.Wrap(err, "failed to ensure users schema", errx.TypeInternal)
	}
	return nil
}

// FindByID busca un usuario por ID.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var u user.User
	query := `SELECT * FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &u, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by ID", errx.TypeInternal)
	}
	return &u, nil
}

// FindByEmail busca un usuario por email.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	query := `SELECT * FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, &u, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by email", errx.TypeInternal)
	}
	return &u, nil
}

// Save inserta un nuevo usuario.
func (r *PostgresUserRepository) Save(ctx context.Context, u user.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (:id, :email, :name, :password_hash, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, u)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return user.ErrEmailTaken().WithDetail("email", u.Email)
		}
		return errx.Wrap(err, "failed to save user", errx.TypeInternal)
	}
	return nil
}

// InsertTx inserta un usuario dentro de una transacción existente.
func InsertTx(ctx context.Context, tx *sqlx.Tx, u user.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (:id, :email, :name, :password_hash, :created_at)`

	if _, err := tx.NamedExecContext(ctx, query, u); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return user.ErrEmailTaken().WithDetail("email", u.Email)
		}
		return errx.Wrap(err, "failed to insert user in tx", errx.TypeInternal)
	}
	return nil
}

// UpdatePasswordTx reemplaza el hash de contraseña dentro de una transacción
// existente. Lo usa la confirmación de password reset: el cambio de
// contraseña y la limpieza del token deben commitear juntos.
func UpdatePasswordTx(ctx context.Context, tx *sqlx.Tx, email string, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE email = $1`
	result, err := tx.ExecContext(ctx, query, email, passwordHash)
	if err != nil {
		return errx.Wrap(err, "failed to update password in tx", errx.TypeInternal)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on password update", errx.TypeInternal)
	}
	if rowsAffected == 0 {
		return user.ErrUserNotFound()
	}
	return nil
}
