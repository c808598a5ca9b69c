package iam

import (
	"net/http"

	"github.com/Abraxas-365/gatekit/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("IAM")

var (
	// CodeUnauthenticated cubre sesión ausente, malformada, forjada o
	// expirada. El mensaje es deliberadamente uniforme: el cliente nunca
	// sabe POR QUÉ falló (anti enumeración); el código interno sí queda
	// en logs.
	CodeUnauthenticated = ErrRegistry.Register("UNAUTHENTICATED", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")

	// CodeStorageError es una falla del colaborador de persistencia.
	// Nunca se degrada a una negación de autorización: se propaga.
	CodeStorageError = ErrRegistry.Register("STORAGE_ERROR", errx.TypeInternal, http.StatusInternalServerError, "Storage operation failed")
)

// Helper functions
func ErrUnauthenticated() *errx.Error {
	return ErrRegistry.New(CodeUnauthenticated)
}

func ErrStorageError(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStorageError, cause)
}
