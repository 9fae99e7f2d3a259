// Package dto define los contratos JSON de la API pública.
package dto

// SignupRequest es el alta de cuenta.
type SignupRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// SignupResponse confirma el alta remota. El código de verificación viaja
// por email, nunca en esta respuesta.
type SignupResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ProviderID string `json:"provider_id,omitempty"`
}

// VerifyOTPRequest verifica el código de signup.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ForgotPasswordRequest pide un código de reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest consume el código de reset y fija la contraseña nueva.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest cambia la contraseña de la sesión autenticada.
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// MessageResponse es la respuesta genérica {success, message}.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
