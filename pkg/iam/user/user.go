package user

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"golang.org/x/crypto/bcrypt"
)

// User representa una cuenta de identidad. Un mismo email puede ser miembro
// de varios tenants; las credenciales viven acá, la autorización en member.
type User struct {
	ID           kernel.UserID `db:"id" json:"id"`
	Email        string        `db:"email" json:"email"`
	Name         string        `db:"name" json:"name"`
	PasswordHash string        `db:"password_hash" json:"-"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// SetPassword reemplaza el hash de contraseña usando bcrypt.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifica la contraseña contra el hash almacenado.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// HashPassword genera un hash bcrypt para una contraseña nueva.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	return string(hash), nil
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeUserNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeEmailTaken    = ErrRegistry.Register("EMAIL_TAKEN", errx.TypeConflict, http.StatusConflict, "Email already registered")
	CodeBadCredential = ErrRegistry.Register("BAD_CREDENTIAL", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")
)

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}

func ErrEmailTaken() *errx.Error {
	return ErrRegistry.New(CodeEmailTaken)
}

// ErrBadCredential lleva el mismo mensaje uniforme que una sesión inválida:
// nunca se revela si falló el email o la contraseña.
func ErrBadCredential() *errx.Error {
	return ErrRegistry.New(CodeBadCredential)
}
