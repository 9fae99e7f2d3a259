// Package provider habla con el identity provider externo: llamadas remotas
// de cuentas/credenciales y el feed inbound de eventos de lifecycle.
// El provider es la fuente de verdad de credenciales; acá nunca se persiste
// ni se loguea una password.
package provider

import (
	"context"
	"fmt"
)

// Profile es el perfil que se manda al crear la cuenta remota.
// Password viaja una sola vez hacia el provider.
type Profile struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	Password    string
	DateOfBirth string
	PhoneNumber string
}

// AccountHandle identifica la cuenta recién creada en el provider.
type AccountHandle struct {
	ID    string
	Email string
}

// Client es el boundary de llamadas salientes al provider.
type Client interface {
	// CreateAccount crea la cuenta remota y devuelve su handle.
	CreateAccount(ctx context.Context, p Profile) (*AccountHandle, error)

	// UpdatePassword reemplaza la credencial de la cuenta remota.
	UpdatePassword(ctx context.Context, providerID, newPassword string) error
}

// RemoteError envuelve una falla del provider con todo el detalle
// diagnóstico menos material de credenciales.
type RemoteError struct {
	Status    int    // HTTP status de la respuesta remota
	Code      string // código de error del provider, si lo reporta
	Message   string
	RequestID string // trace id remoto para correlacionar con el provider
}

func (e *RemoteError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("provider: status=%d code=%s request_id=%s: %s", e.Status, e.Code, e.RequestID, e.Message)
	}
	return fmt.Sprintf("provider: status=%d code=%s: %s", e.Status, e.Code, e.Message)
}
