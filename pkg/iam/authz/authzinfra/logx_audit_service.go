package authzinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/Abraxas-365/gatekit/pkg/logx"
)

// LogxAuditService implements authz.AuditService using structured logx logging.
type LogxAuditService struct{}

func NewLogxAuditService() *LogxAuditService {
	return &LogxAuditService{}
}

func (s *LogxAuditService) LogDecision(_ context.Context, identity *kernel.Identity, check string, allowed bool, reason string) {
	fields := logx.Fields{
		"audit_event": "authz_decision",
		"check":       check,
		"allowed":     allowed,
		"timestamp":   time.Now(),
	}
	if identity != nil {
		fields["tenant_id"] = identity.TenantID
		fields["email"] = identity.Email
	}
	if reason != "" {
		fields["reason"] = reason
	}

	entry := logx.WithFields(fields)
	if allowed {
		entry.Debug("Audit: authorization granted")
	} else {
		entry.Info("Audit: authorization denied")
	}
}
