// Package verification emite y consume los códigos one-time de email.
// Coordina el token store, el directorio y el provider remoto; es el único
// lugar que conoce el código en claro, y jamás lo escribe en un log.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dropDatabas3/idmirror/internal/directory"
	"github.com/dropDatabas3/idmirror/internal/domain"
	"github.com/dropDatabas3/idmirror/internal/email"
	"github.com/dropDatabas3/idmirror/internal/metrics"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/dropDatabas3/idmirror/internal/otp"
	"github.com/dropDatabas3/idmirror/internal/provider"
)

// Service errors
var (
	ErrEmailEmpty      = errors.New("verification: email is empty")
	ErrPasswordEmpty   = errors.New("verification: password is empty")
	ErrInvalidPurpose  = errors.New("verification: invalid purpose")
	ErrProviderMissing = errors.New("verification: user has no provider account")
)

// Service define las operaciones sobre códigos de verificación.
type Service interface {
	// Issue genera un código nuevo, lo guarda con TTL y lo manda por email.
	// Devuelve el código al caller (que no debe loguearlo ni exponerlo en
	// respuestas); fuera de eso solo existe en el token store y en el mail.
	Issue(ctx context.Context, emailAddr string, purpose domain.Purpose) (string, error)

	// Verify consume el código. Cualquier match (válido o vencido) queda
	// quemado; el outcome distingue success, expired e invalid_code.
	Verify(ctx context.Context, emailAddr string, purpose domain.Purpose, code string) (domain.VerifyOutcome, error)

	// CompleteSignupVerification verifica el código de signup y marca el row
	// local como verificado. Si el row todavía no se espejó devuelve
	// domain.ErrUserNotFound: el código ya se quemó, el caller reintenta el
	// flujo pidiendo uno nuevo.
	CompleteSignupVerification(ctx context.Context, emailAddr, code string) (domain.VerifyOutcome, error)

	// ResetPassword verifica el código de reset y actualiza la credencial en
	// el provider. El código se quema aunque la llamada remota falle.
	ResetPassword(ctx context.Context, emailAddr, code, newPassword string) (domain.VerifyOutcome, error)

	// ChangePassword actualiza la credencial remota de un usuario ya
	// autenticado, sin código de por medio.
	ChangePassword(ctx context.Context, providerID, newPassword string) error
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Tokens    otp.Store
	Dir       directory.Directory
	Provider  provider.Client
	Sender    email.Sender
	Templates *email.Templates

	TTL     time.Duration // vida lógica del código (default 10m)
	AppName string        // nombre visible en los emails
}

type service struct {
	deps Deps
	now  func() time.Time
}

// New crea el servicio de verificación.
func New(deps Deps) Service {
	if deps.TTL <= 0 {
		deps.TTL = 10 * time.Minute
	}
	if deps.Templates == nil {
		deps.Templates = email.NewTemplates()
	}
	if deps.AppName == "" {
		deps.AppName = "idmirror"
	}
	return &service{deps: deps, now: time.Now}
}

func (s *service) Issue(ctx context.Context, emailAddr string, purpose domain.Purpose) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("verification"),
		logger.Op("Issue"),
		logger.Purpose(string(purpose)),
		logger.Email(emailAddr),
	)

	if emailAddr == "" {
		return "", ErrEmailEmpty
	}
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("verification: generate code: %w", err)
	}

	now := s.now()
	tok := domain.VerificationToken{
		SubjectKey: emailAddr,
		Purpose:    purpose,
		Code:       code,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.deps.TTL),
	}
	if err := s.deps.Tokens.Put(ctx, tok); err != nil {
		return "", fmt.Errorf("verification: store token: %w", err)
	}

	subject, html, text, err := s.deps.Templates.Render(purpose, email.OTPVars{
		Code:       code,
		TTLMinutes: int(s.deps.TTL.Minutes()),
		AppName:    s.deps.AppName,
	})
	if err != nil {
		return "", err
	}
	if err := s.deps.Sender.Send(emailAddr, subject, html, text); err != nil {
		diag, temporary := email.Diagnose(err)
		log.Error("no se pudo entregar el código",
			logger.String("smtp_diag", diag),
			logger.Bool("temporary", temporary),
		)
		return "", fmt.Errorf("verification: deliver code: %w", err)
	}

	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	log.Info("código emitido") // el código nunca se loguea
	return code, nil
}

func (s *service) Verify(ctx context.Context, emailAddr string, purpose domain.Purpose, code string) (domain.VerifyOutcome, error) {
	emailAddr = normalizeEmail(emailAddr)
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("verification"),
		logger.Op("Verify"),
		logger.Purpose(string(purpose)),
		logger.Email(emailAddr),
	)

	if emailAddr == "" || code == "" {
		return domain.VerifyInvalidCode, nil
	}
	if !purpose.Valid() {
		return domain.VerifyInvalidCode, fmt.Errorf("%w: %q", ErrInvalidPurpose, purpose)
	}

	tok, ok, err := s.deps.Tokens.Consume(ctx, emailAddr, purpose, code)
	if err != nil {
		return domain.VerifyInvalidCode, fmt.Errorf("verification: consume token: %w", err)
	}

	out := domain.VerifyInvalidCode
	switch {
	case !ok:
		// no-match: código equivocado, ya usado, o evaporado del backend
	case tok.Expired(s.now()):
		out = domain.VerifyExpired
	default:
		out = domain.VerifySuccess
	}

	metrics.OTPVerified.WithLabelValues(string(purpose), out.String()).Inc()
	log.Info("código verificado", logger.Outcome(out.String()))
	return out, nil
}

func (s *service) CompleteSignupVerification(ctx context.Context, emailAddr, code string) (domain.VerifyOutcome, error) {
	emailAddr = normalizeEmail(emailAddr)
	out, err := s.Verify(ctx, emailAddr, domain.PurposeSignupVerification, code)
	if err != nil || out != domain.VerifySuccess {
		return out, err
	}

	if err := s.deps.Dir.MarkVerified(ctx, emailAddr); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// El webhook de user.created todavía no llegó. Transitorio: el
			// caller pide otro código y reintenta cuando el row exista.
			return out, fmt.Errorf("verification: mark verified: %w", domain.ErrUserNotFound)
		}
		return out, fmt.Errorf("verification: mark verified: %w", err)
	}
	return out, nil
}

func (s *service) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) (domain.VerifyOutcome, error) {
	if newPassword == "" {
		return domain.VerifyInvalidCode, ErrPasswordEmpty
	}

	emailAddr = normalizeEmail(emailAddr)
	out, err := s.Verify(ctx, emailAddr, domain.PurposePasswordReset, code)
	if err != nil || out != domain.VerifySuccess {
		return out, err
	}

	// De acá en adelante el código ya está quemado: una falla remota
	// devuelve error pero no revive el token. Pedir otro código es barato;
	// un token reutilizable no.
	u, err := s.deps.Dir.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return out, fmt.Errorf("verification: reset password: %w", domain.ErrUserNotFound)
		}
		return out, fmt.Errorf("verification: reset password: %w", err)
	}
	if u.ProviderID == nil || *u.ProviderID == "" {
		return out, ErrProviderMissing
	}

	if err := s.deps.Provider.UpdatePassword(ctx, *u.ProviderID, newPassword); err != nil {
		return out, fmt.Errorf("verification: update remote credential: %w", err)
	}
	return out, nil
}

func (s *service) ChangePassword(ctx context.Context, providerID, newPassword string) error {
	if providerID == "" {
		return ErrProviderMissing
	}
	if newPassword == "" {
		return ErrPasswordEmpty
	}
	if err := s.deps.Provider.UpdatePassword(ctx, providerID, newPassword); err != nil {
		return fmt.Errorf("verification: update remote credential: %w", err)
	}
	return nil
}

// normalizeEmail canonicaliza el subject de los tokens. El signup baja el
// email a minúsculas antes de emitir; sin esta misma normalización en los
// paths de verify, un "Ada@Test.com" tipeado a mano nunca matchearía el
// token de "ada@test.com".
func normalizeEmail(emailAddr string) string {
	return strings.TrimSpace(strings.ToLower(emailAddr))
}

// generateCode devuelve 6 dígitos decimales uniformes con ceros a la
// izquierda. crypto/rand.Int no tiene sesgo de módulo.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
