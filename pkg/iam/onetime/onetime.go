package onetime

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// ============================================================================
// Domain Types
// ============================================================================

// Purpose clasifica el uso de un grant de un solo uso
type Purpose string

const (
	PurposePasswordReset Purpose = "password_reset"
	PurposeInvite        Purpose = "invite"
)

// Grant representa un secreto de un solo uso otorgado a un sujeto. El
// secreto crudo nunca se persiste: storage guarda solo su hash. El consumo
// limpia hash y expiración juntos, en la misma transacción que el cambio
// de estado que autoriza.
//
// Máquina de estados: ISSUED → CONSUMED (explícito, terminal) o
// ISSUED → EXPIRED (implícito, una comparación de tiempo). Sin
// transiciones desde estados terminales.
type Grant struct {
	SubjectKey string     `db:"subject_key" json:"subject_key"`
	Purpose    Purpose    `db:"purpose" json:"purpose"`
	TokenHash  *string    `db:"token_hash" json:"-"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at"`
	ConsumedAt *time.Time `db:"consumed_at" json:"consumed_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// IsConsumed verifica si el grant ya fue consumido
func (g *Grant) IsConsumed() bool {
	return g.ConsumedAt != nil
}

// IsExpired verifica si el grant expiró
func (g *Grant) IsExpired() bool {
	return g.ExpiresAt == nil || time.Now().After(*g.ExpiresAt)
}

// IsUsable verifica si el grant puede consumirse
func (g *Grant) IsUsable() bool {
	return g.TokenHash != nil && !g.IsConsumed() && !g.IsExpired()
}

// ============================================================================
// Subject Keys
// ============================================================================

// PasswordResetSubject construye la clave de sujeto para un reset de contraseña
func PasswordResetSubject(email string) string {
	return "reset:" + email
}

// InviteSubject construye la clave de sujeto para una invitación
func InviteSubject(tenantID kernel.TenantID, email string) string {
	return fmt.Sprintf("invite:%s:%s", tenantID.String(), email)
}

// EmailFromResetSubject extrae el email de una clave de reset
func EmailFromResetSubject(subjectKey string) (string, bool) {
	email, ok := strings.CutPrefix(subjectKey, "reset:")
	return email, ok && email != ""
}

// SplitInviteSubject extrae tenant y email de una clave de invitación
func SplitInviteSubject(subjectKey string) (kernel.TenantID, string, bool) {
	rest, ok := strings.CutPrefix(subjectKey, "invite:")
	if !ok {
		return "", "", false
	}
	tenantID, email, ok := strings.Cut(rest, ":")
	if !ok || tenantID == "" || email == "" {
		return "", "", false
	}
	return kernel.NewTenantID(tenantID), email, true
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("ONETIME")

var (
	// CodeInvalidOrExpired cubre token inexistente, ya consumido o vencido
	// con un único mensaje: el cliente nunca distingue cuál.
	CodeInvalidOrExpired = ErrRegistry.Register("INVALID_OR_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
	CodeIssueFailed      = ErrRegistry.Register("ISSUE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token issuance failed")
)

func ErrInvalidOrExpired() *errx.Error {
	return ErrRegistry.New(CodeInvalidOrExpired)
}

func ErrIssueFailed() *errx.Error {
	return ErrRegistry.New(CodeIssueFailed)
}
