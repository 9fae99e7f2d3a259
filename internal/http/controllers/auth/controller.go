// Package auth contiene los controllers del flujo de cuentas: signup,
// verificación de email y manejo de contraseñas.
package auth

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/idmirror/internal/domain"
	"github.com/dropDatabas3/idmirror/internal/http/dto"
	httperrors "github.com/dropDatabas3/idmirror/internal/http/errors"
	"github.com/dropDatabas3/idmirror/internal/http/helpers"
	"github.com/dropDatabas3/idmirror/internal/http/middlewares"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/dropDatabas3/idmirror/internal/provider"
	"github.com/dropDatabas3/idmirror/internal/signup"
	"github.com/dropDatabas3/idmirror/internal/verification"
)

// Controller maneja las rutas /v1/auth/*.
type Controller struct {
	signup signup.Service
	verify verification.Service
}

func NewController(signupSvc signup.Service, verifySvc verification.Service) *Controller {
	return &Controller{signup: signupSvc, verify: verifySvc}
}

// Signup maneja POST /v1/auth/signup
func (c *Controller) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	handle, err := c.signup.Signup(r.Context(), signup.Request{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: req.DateOfBirth,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		httperrors.WriteError(w, r, mapSignupError(err))
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, dto.SignupResponse{
		Success:    true,
		Message:    "Cuenta creada, revisá tu email para verificarla.",
		ProviderID: handle.ID,
	})
}

// VerifyOTP maneja POST /v1/auth/verify-otp
func (c *Controller) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyOTPRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("email y code son requeridos"))
		return
	}

	out, err := c.verify.CompleteSignupVerification(r.Context(), req.Email, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httperrors.WriteError(w, r, httperrors.ErrUserNotFound.WithCause(err))
			return
		}
		httperrors.WriteError(w, r, err)
		return
	}
	if appErr := outcomeError(out); appErr != nil {
		httperrors.WriteError(w, r, appErr)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Email verificado.",
	})
}

// ForgotPassword maneja POST /v1/auth/forgot-password
func (c *Controller) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("email es requerido"))
		return
	}

	if _, err := c.verify.Issue(r.Context(), req.Email, domain.PurposePasswordReset); err != nil {
		// No se filtra si el email existe o no; la falla real queda en logs.
		logger.From(r.Context()).Warn("forgot-password no pudo emitir código", logger.Err(err))
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Si la cuenta existe, vas a recibir un código por email.",
	})
}

// ResetPassword maneja POST /v1/auth/reset-password
func (c *Controller) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("email, code y new_password son requeridos"))
		return
	}

	out, err := c.verify.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		httperrors.WriteError(w, r, mapResetError(err))
		return
	}
	if appErr := outcomeError(out); appErr != nil {
		httperrors.WriteError(w, r, appErr)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Contraseña actualizada.",
	})
}

// ChangePassword maneja POST /v1/auth/change-password (requiere sesión)
func (c *Controller) ChangePassword(w http.ResponseWriter, r *http.Request) {
	providerID := middlewares.GetProviderID(r.Context())
	if providerID == "" {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}

	var req dto.ChangePasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		httperrors.WriteError(w, r, httperrors.ErrMissingFields.WithDetail("new_password es requerido"))
		return
	}

	if err := c.verify.ChangePassword(r.Context(), providerID, req.NewPassword); err != nil {
		httperrors.WriteError(w, r, mapResetError(err))
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: "Contraseña actualizada.",
	})
}

// outcomeError traduce un VerifyOutcome no exitoso a su AppError.
func outcomeError(out domain.VerifyOutcome) *httperrors.AppError {
	switch out {
	case domain.VerifySuccess:
		return nil
	case domain.VerifyExpired:
		return httperrors.ErrCodeExpired
	default:
		return httperrors.ErrInvalidCode
	}
}

func mapSignupError(err error) error {
	switch {
	case errors.Is(err, domain.ErrDuplicateUser):
		return httperrors.ErrDuplicateUser.WithCause(err)
	case errors.Is(err, signup.ErrMissingFields):
		return httperrors.ErrMissingFields.WithCause(err)
	default:
		return providerOrInternal(err)
	}
}

func mapResetError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return httperrors.ErrUserNotFound.WithCause(err)
	case errors.Is(err, verification.ErrProviderMissing):
		return httperrors.ErrUserNotFound.WithCause(err)
	case errors.Is(err, verification.ErrPasswordEmpty):
		return httperrors.ErrMissingFields.WithCause(err)
	default:
		return providerOrInternal(err)
	}
}

// providerOrInternal distingue fallas del provider remoto (502) del resto.
func providerOrInternal(err error) error {
	var remote *provider.RemoteError
	if errors.As(err, &remote) {
		appErr := httperrors.ErrProviderUnavailable.WithCause(err)
		if remote.Status >= 400 && remote.Status < 500 {
			// 4xx remoto es culpa del request, no del provider.
			appErr = httperrors.ErrBadRequest.WithCause(err)
			if remote.Message != "" {
				appErr = appErr.WithDetail(remote.Message)
			}
		}
		return appErr
	}
	return err
}
