package tenant

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// Tenant representa una organización. Tiene exactamente un plan vigente,
// mutado por operaciones de billing fuera de este core y leído acá como
// string crudo que iam/plan canonicaliza.
type Tenant struct {
	ID        kernel.TenantID `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Plan      string          `db:"plan" json:"plan"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("TENANT")

var (
	CodeTenantNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tenant not found")
)

func ErrTenantNotFound() *errx.Error {
	return ErrRegistry.New(CodeTenantNotFound)
}
