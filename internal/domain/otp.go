package domain

import "time"

// Purpose clasifica para qué se emitió un código de verificación.
type Purpose string

const (
	PurposeSignupVerification Purpose = "signup_email_verification"
	PurposePasswordReset      Purpose = "password_reset"
)

// Valid reporta si el purpose pertenece al conjunto cerrado.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSignupVerification, PurposePasswordReset:
		return true
	}
	return false
}

// VerificationToken es un código one-time emitido contra un email.
// Un token se consume (borra) en el primer match, sea válido o vencido.
// Puede haber varios tokens vivos para el mismo (subject, purpose); no se
// deduplica a propósito: cada "reenviar código" emite uno nuevo.
type VerificationToken struct {
	SubjectKey string    `json:"subject_key"` // email destino
	Purpose    Purpose   `json:"purpose"`
	Code       string    `json:"code"` // 6 dígitos, ceros a la izquierda
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reporta si el token venció respecto de now.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VerifyOutcome es el resultado tipado de una verificación de OTP.
// No son errores: el caller debe manejar cada caso.
type VerifyOutcome int

const (
	VerifyInvalidCode VerifyOutcome = iota
	VerifyExpired
	VerifySuccess
)

// String implementa fmt.Stringer (para logs y métricas).
func (o VerifyOutcome) String() string {
	switch o {
	case VerifySuccess:
		return "success"
	case VerifyExpired:
		return "expired"
	default:
		return "invalid_code"
	}
}
