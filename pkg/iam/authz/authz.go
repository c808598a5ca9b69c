package authz

import (
	"net/http"

	"github.com/Abraxas-365/gatekit/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTHZ")

var (
	// Ambos códigos FORBIDDEN devuelven 403 con mensaje genérico; el código
	// interno distingue la causa para observabilidad.
	CodeForbiddenNotActive = ErrRegistry.Register("FORBIDDEN_NOT_ACTIVE", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
	CodeForbiddenNotOwner  = ErrRegistry.Register("FORBIDDEN_NOT_OWNER", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
)

// Helper functions
func ErrForbiddenNotActive() *errx.Error {
	return ErrRegistry.New(CodeForbiddenNotActive)
}

func ErrForbiddenNotOwner() *errx.Error {
	return ErrRegistry.New(CodeForbiddenNotOwner)
}
