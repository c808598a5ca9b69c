package member

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// ============================================================================
// Domain Types
// ============================================================================

// Role es el rol de un miembro dentro de su tenant
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Status es el estado de la membresía
type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusSuspended Status = "suspended"
)

// Membership representa el par (tenant, usuario) con su rol y estado.
// Es el actor relevante para autorización, resuelto fresco desde storage
// en cada chequeo: nunca se cachea en la sesión.
type Membership struct {
	TenantID  kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	UserID    kernel.UserID   `db:"user_id" json:"user_id"`
	Email     string          `db:"email" json:"email"`
	Role      Role            `db:"role" json:"role"`
	Status    Status          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// IsActive verifica si la membresía está activa
func (m *Membership) IsActive() bool {
	return m.Status == StatusActive
}

// IsOwner verifica si el miembro es dueño del tenant
func (m *Membership) IsOwner() bool {
	return m.Role == RoleOwner
}

// AuthContext convierte la membresía resuelta en el contexto de actor
// que se inyecta en el request.
func (m *Membership) AuthContext() *kernel.AuthContext {
	return &kernel.AuthContext{
		UserID:   m.UserID,
		TenantID: m.TenantID,
		Email:    m.Email,
		Role:     string(m.Role),
		Status:   string(m.Status),
	}
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("MEMBER")

var (
	CodeMemberNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Membership not found")
	CodeAlreadyExists  = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Membership already exists")
)

func ErrMemberNotFound() *errx.Error {
	return ErrRegistry.New(CodeMemberNotFound)
}

func ErrAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeAlreadyExists)
}
