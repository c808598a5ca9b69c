package onetimesrv

import (
	"context"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/asyncx"
	"github.com/Abraxas-365/gatekit/pkg/cryptox"
	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/Abraxas-365/gatekit/pkg/iam/member"
	"github.com/Abraxas-365/gatekit/pkg/iam/onetime"
	"github.com/Abraxas-365/gatekit/pkg/iam/user"
	"github.com/Abraxas-365/gatekit/pkg/kernel"
	"github.com/Abraxas-365/gatekit/pkg/logx"
	"github.com/Abraxas-365/gatekit/pkg/notifx"
	"github.com/jmoiron/sqlx"
)

const (
	// DefaultResetTTL es la vigencia de un token de reset de contraseña.
	DefaultResetTTL = 30 * time.Minute
	// DefaultInviteTTL es la vigencia de una invitación.
	DefaultInviteTTL = 7 * 24 * time.Hour

	minPasswordLength = 8
)

// Mailer envía los correos que produce la emisión de tokens.
type Mailer interface {
	SendTemplatedEmail(ctx context.Context, templateName string, data interface{}, msg notifx.EmailMessage, opts ...notifx.Option) error
}

// StateApplier aplica, dentro de la transacción de consumo, el cambio de
// estado que el token autoriza.
type StateApplier interface {
	ApplyPasswordReset(ctx context.Context, tx *sqlx.Tx, email, passwordHash string) error
	ApplyInviteAcceptance(ctx context.Context, tx *sqlx.Tx, tenantID kernel.TenantID, email, name, passwordHash string) (kernel.UserID, error)
}

// TokenService orquesta la emisión y el consumo de tokens de un solo uso:
// resets de contraseña e invitaciones a tenants.
type TokenService struct {
	repo      onetime.Repository
	users     user.Repository
	members   member.Repository
	applier   StateApplier
	mailer    Mailer
	baseURL   string
	resetTTL  time.Duration
	inviteTTL time.Duration
}

// NewTokenService crea el servicio con las vigencias por defecto.
func NewTokenService(
	repo onetime.Repository,
	users user.Repository,
	members member.Repository,
	applier StateApplier,
	mailer Mailer,
	baseURL string,
) *TokenService {
	return &TokenService{
		repo:      repo,
		users:     users,
		members:   members,
		applier:   applier,
		mailer:    mailer,
		baseURL:   baseURL,
		resetTTL:  DefaultResetTTL,
		inviteTTL: DefaultInviteTTL,
	}
}

// IssuePasswordReset emite un token de reset para el email dado y lo envía
// por correo. Si el email no corresponde a ningún usuario la operación
// termina en silencio: la respuesta nunca revela qué cuentas existen.
func (s *TokenService) IssuePasswordReset(ctx context.Context, email string) error {
	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		if xerr := errx.FromError(err); xerr.IsType(errx.TypeNotFound) {
			logx.WithField("email", email).Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	secret, err := cryptox.GenerateSecret()
	if err != nil {
		return onetime.ErrIssueFailed().WithDetail("cause", err.Error())
	}

	digest := cryptox.HashSecret(secret)
	grant := onetime.Grant{
		SubjectKey: onetime.PasswordResetSubject(email),
		Purpose:    onetime.PurposePasswordReset,
		TokenHash:  &digest,
		ExpiresAt:  ptrTime(time.Now().Add(s.resetTTL)),
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Upsert(ctx, grant); err != nil {
		return err
	}

	s.dispatchEmail(TemplateNamePasswordReset, resetEmailData{
		Link:      s.baseURL + "/auth/password-reset/confirm?token=" + secret,
		ExpiresIn: s.resetTTL.String(),
	}, notifx.EmailMessage{
		To:      []string{email},
		Subject: "Reset your password",
	})

	return nil
}

// ConfirmPasswordReset consume el token y actualiza la contraseña en la
// misma transacción. Un token inexistente, vencido o ya consumido produce
// siempre el mismo error.
func (s *TokenService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return errx.Validation("Password must be at least 8 characters")
	}

	passwordHash, err := user.HashPassword(newPassword)
	if err != nil {
		return errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}

	digest := cryptox.HashSecret(rawToken)
	_, err = s.repo.Consume(ctx, digest, func(ctx context.Context, tx *sqlx.Tx, g *onetime.Grant) error {
		if g.Purpose != onetime.PurposePasswordReset {
			return onetime.ErrInvalidOrExpired()
		}
		email, ok := onetime.EmailFromResetSubject(g.SubjectKey)
		if !ok {
			return onetime.ErrInvalidOrExpired()
		}
		return s.applier.ApplyPasswordReset(ctx, tx, email, passwordHash)
	})
	return err
}

// IssueInvite crea la membresía pendiente (si no existe) y emite el token
// de invitación. Re-invitar a un miembro pendiente renueva el token; un
// miembro ya activo no puede volver a invitarse.
func (s *TokenService) IssueInvite(ctx context.Context, tenantID kernel.TenantID, email string, role member.Role) error {
	existing, err := s.members.FindByIdentity(ctx, tenantID, email)
	switch {
	case err == nil:
		if existing.Status != member.StatusPending {
			return member.ErrAlreadyExists().WithDetail("email", email)
		}
		// re-invitación: la membresía pendiente queda como está
	case errx.FromError(err).IsType(errx.TypeNotFound):
		m := member.Membership{
			TenantID:  tenantID,
			Email:     email,
			Role:      role,
			Status:    member.StatusPending,
			CreatedAt: time.Now(),
		}
		if err := s.members.Save(ctx, m); err != nil {
			return err
		}
	default:
		return err
	}

	secret, err := cryptox.GenerateSecret()
	if err != nil {
		return onetime.ErrIssueFailed().WithDetail("cause", err.Error())
	}

	digest := cryptox.HashSecret(secret)
	grant := onetime.Grant{
		SubjectKey: onetime.InviteSubject(tenantID, email),
		Purpose:    onetime.PurposeInvite,
		TokenHash:  &digest,
		ExpiresAt:  ptrTime(time.Now().Add(s.inviteTTL)),
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Upsert(ctx, grant); err != nil {
		return err
	}

	s.dispatchEmail(TemplateNameInvite, inviteEmailData{
		Link:      s.baseURL + "/auth/invitations/accept?token=" + secret,
		ExpiresIn: s.inviteTTL.String(),
	}, notifx.EmailMessage{
		To:      []string{email},
		Subject: "You have been invited",
	})

	return nil
}

// AcceptInvite consume el token de invitación, crea la cuenta si hace falta
// y activa la membresía, todo en una transacción. Devuelve la identidad
// resultante para que el handler pueda emitir la cookie de sesión.
func (s *TokenService) AcceptInvite(ctx context.Context, rawToken, name, password string) (*kernel.Identity, error) {
	if len(password) < minPasswordLength {
		return nil, errx.Validation("Password must be at least 8 characters")
	}

	passwordHash, err := user.HashPassword(password)
	if err != nil {
		return nil, errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}

	var identity kernel.Identity
	digest := cryptox.HashSecret(rawToken)
	_, err = s.repo.Consume(ctx, digest, func(ctx context.Context, tx *sqlx.Tx, g *onetime.Grant) error {
		if g.Purpose != onetime.PurposeInvite {
			return onetime.ErrInvalidOrExpired()
		}
		tenantID, email, ok := onetime.SplitInviteSubject(g.SubjectKey)
		if !ok {
			return onetime.ErrInvalidOrExpired()
		}
		if _, err := s.applier.ApplyInviteAcceptance(ctx, tx, tenantID, email, name, passwordHash); err != nil {
			return err
		}
		identity = kernel.Identity{TenantID: tenantID, Email: email}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// CleanExpired borra los grants vencidos nunca consumidos. Pensado para
// correr periódicamente como housekeeping.
func (s *TokenService) CleanExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logx.WithField("deleted", deleted).Info("expired one-time tokens cleaned")
	}
	return deleted, nil
}

// dispatchEmail envía el correo en background. Un fallo de entrega se
// registra pero nunca bloquea ni revierte la emisión del token.
func (s *TokenService) dispatchEmail(templateName string, data interface{}, msg notifx.EmailMessage) {
	if s.mailer == nil {
		return
	}
	asyncx.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.SendTemplatedEmail(ctx, templateName, data, msg); err != nil {
			logx.WithError(err).WithField("template", templateName).Warn("token email not delivered")
		}
	})
}

func ptrTime(t time.Time) *time.Time { return &t }

type resetEmailData struct {
	Link      string
	ExpiresIn string
}

type inviteEmailData struct {
	Link      string
	ExpiresIn string
}
