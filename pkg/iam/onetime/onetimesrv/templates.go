package onetimesrv

import "github.com/Abraxas-365/gatekit/pkg/notifx"

// Nombres de los templates de correo que el servicio usa.
const (
	TemplateNamePasswordReset = "password_reset"
	TemplateNameInvite        = "invite"
)

const passwordResetTemplate = `
<html>
  <body>
    <p>Someone requested a password reset for your account.</p>
    <p><a href="{{.Link}}">Reset your password</a></p>
    <p>The link expires in {{.ExpiresIn}}. If you did not request this, ignore this email.</p>
  </body>
</html>`

const inviteTemplate = `
<html>
  <body>
    <p>You have been invited to join a workspace.</p>
    <p><a href="{{.Link}}">Accept the invitation</a></p>
    <p>The invitation expires in {{.ExpiresIn}}.</p>
  </body>
</html>`

// RegisterTemplates registra los templates de correo en el cliente de
// notificaciones. Se invoca una vez durante el arranque del contenedor.
func RegisterTemplates(c *notifx.Client) error {
	if err := c.RegisterTemplate(TemplateNamePasswordReset, passwordResetTemplate); err != nil {
		return err
	}
	return c.RegisterTemplate(TemplateNameInvite, inviteTemplate)
}
