package kernel

// ============================================================================
// Context Types - Tipos para context.Context
// ============================================================================

// Identity son los únicos claims firmados dentro de la sesión: tenant y
// correo. Rol, estado y plan NUNCA viajan en el token; se resuelven desde
// storage en cada chequeo de autorización.
type Identity struct {
	TenantID TenantID `json:"tenant_id"`
	Email    string   `json:"email"`
}

// IsValid verifica si la identidad está completa
func (i Identity) IsValid() bool {
	return !i.TenantID.IsEmpty() && i.Email != ""
}

// AuthContext es el actor resuelto que se inyecta en cada request una vez
// que el gate de autorización consultó storage.
type AuthContext struct {
	UserID   UserID   `json:"user_id"`
	TenantID TenantID `json:"tenant_id"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Status   string   `json:"status"`
}

// IsValid verifica si el AuthContext es válido
func (ac *AuthContext) IsValid() bool {
	return !ac.UserID.IsEmpty() && !ac.TenantID.IsEmpty()
}

// IsOwner verifica si el actor tiene rol de dueño del tenant
func (ac *AuthContext) IsOwner() bool {
	return ac.Role == "owner"
}

// IsActive verifica si la membresía del actor está activa
func (ac *AuthContext) IsActive() bool {
	return ac.Status == "active"
}

// ============================================================================
// Context Keys - Claves para context.Context
// ============================================================================

type ContextKey string

const (
	// AuthContextKey es la clave para almacenar AuthContext en context.Context
	AuthContextKey ContextKey = "auth_context"

	// TenantContextKey es la clave para almacenar TenantID en context.Context
	TenantContextKey ContextKey = "tenant_id"

	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)
