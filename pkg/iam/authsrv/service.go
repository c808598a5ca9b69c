package authsrv

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/iam/session"
	"github.com/Abraxas-365/gatekit/pkg/iam/user"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/Abraxas-365/gatekit/pkg/logx"
)

// AuthService autentica credenciales y emite sesiones. Toda falla de
// autenticación (email desconocido, contraseña mala, sin membresía en el
// tenant) produce el mismo error hacia afuera; el motivo real queda solo
// en los logs.
type AuthService struct {
	users    user.Repository
	members  member.Repository
	sessions *session.Manager
}

// NewAuthService crea el servicio de autenticación.
func NewAuthService(users user.Repository, members member.Repository, sessions *session.Manager) *AuthService {
	return &AuthService{users: users, members: members, sessions: sessions}
}

// Login valida las credenciales contra el tenant dado y devuelve el actor
// junto con el valor de la cookie de sesión.
func (s *AuthService) Login(ctx context.Context, tenantID kernel.TenantID, email, password string) (*kernel.AuthContext, string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errx.FromError(err).IsType(errx.TypeNotFound) {
			logx.WithField("email", email).Debug("login failed: unknown email")
			return nil, "", user.ErrBadCredential()
		}
		return nil, "", iam.ErrStorageError(err)
	}

	if !u.CheckPassword(password) {
		logx.WithField("email", email).Debug("login failed: wrong password")
		return nil, "", user.ErrBadCredential()
	}

	m, err := s.members.FindByIdentity(ctx, tenantID, email)
	if err != nil {
		if errx.FromError(err).IsType(errx.TypeNotFound) {
			logx.WithFields(logx.Fields{
				"email":     email,
				"tenant_id": tenantID.String(),
			}).Debug("login failed: no membership in tenant")
			return nil, "", user.ErrBadCredential()
		}
		return nil, "", iam.ErrStorageError(err)
	}

	cookieValue, err := s.sessions.Issue(tenantID, email)
	if err != nil {
		return nil, "", err
	}
	return m.AuthContext(), cookieValue, nil
}
