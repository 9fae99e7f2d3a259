package email

import (
	"bytes"
	"fmt"
	htemplate "html/template"
	ttemplate "text/template"

	"github.com/dropDatabas3/idmirror/internal/domain"
)

// OTPVars son las variables disponibles en los templates de código.
type OTPVars struct {
	Code       string
	TTLMinutes int
	AppName    string
}

const defaultVerifyHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>Verificá tu email</h2>
  <p>Tu código de verificación de {{.AppName}} es:</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>Vence en {{.TTLMinutes}} minutos. Si no creaste una cuenta, ignorá este mensaje.</p>
</body>
</html>`

const defaultVerifyText = `Tu código de verificación de {{.AppName}} es: {{.Code}}

Vence en {{.TTLMinutes}} minutos. Si no creaste una cuenta, ignorá este mensaje.
`

const defaultResetHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  <h2>Restablecer contraseña</h2>
  <p>Tu código para restablecer la contraseña de {{.AppName}} es:</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>Vence en {{.TTLMinutes}} minutos. Si no pediste el cambio, ignorá este mensaje.</p>
</body>
</html>`

const defaultResetText = `Tu código para restablecer la contraseña de {{.AppName}} es: {{.Code}}

Vence en {{.TTLMinutes}} minutos. Si no pediste el cambio, ignorá este mensaje.
`

// Templates renderiza los emails de código por purpose. Los templates se
// compilan una vez al construir; Render no falla por parseo.
type Templates struct {
	verifyHTML *htemplate.Template
	verifyText *ttemplate.Template
	resetHTML  *htemplate.Template
	resetText  *ttemplate.Template
}

// NewTemplates compila los templates por defecto.
func NewTemplates() *Templates {
	return &Templates{
		verifyHTML: htemplate.Must(htemplate.New("verify_html").Parse(defaultVerifyHTML)),
		verifyText: ttemplate.Must(ttemplate.New("verify_text").Parse(defaultVerifyText)),
		resetHTML:  htemplate.Must(htemplate.New("reset_html").Parse(defaultResetHTML)),
		resetText:  ttemplate.Must(ttemplate.New("reset_text").Parse(defaultResetText)),
	}
}

// Render devuelve subject, HTML y texto plano para el purpose dado.
func (t *Templates) Render(purpose domain.Purpose, vars OTPVars) (subject, html, text string, err error) {
	var hb, tb bytes.Buffer
	switch purpose {
	case domain.PurposePasswordReset:
		subject = fmt.Sprintf("Código para restablecer tu contraseña de %s", vars.AppName)
		if err = t.resetHTML.Execute(&hb, vars); err == nil {
			err = t.resetText.Execute(&tb, vars)
		}
	case domain.PurposeSignupVerification:
		subject = fmt.Sprintf("Tu código de verificación de %s", vars.AppName)
		if err = t.verifyHTML.Execute(&hb, vars); err == nil {
			err = t.verifyText.Execute(&tb, vars)
		}
	default:
		return "", "", "", fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, purpose)
	}
	if err != nil {
		return "", "", "", fmt.Errorf("email: render %s: %w", purpose, err)
	}
	return subject, hb.String(), tb.String(), nil
}
