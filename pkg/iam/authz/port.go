package authz

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// AuditService defines the contract for authorization audit logging
type AuditService interface {
	// LogDecision registra el resultado de un chequeo de autorización.
	// identity puede ser nil cuando no hubo sesión válida.
	LogDecision(ctx context.Context, identity *kernel.Identity, check string, allowed bool, reason string)
}

// NopAuditService discards all audit events.
type NopAuditService struct{}

func (NopAuditService) LogDecision(context.Context, *kernel.Identity, string, bool, string) {}
