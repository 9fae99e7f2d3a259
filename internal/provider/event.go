package provider

import (
	"encoding/json"
	"fmt"

	"github.com/dropDatabas3/idmirror/internal/domain"
)

// Parsing del payload de eventos a la unión cerrada domain.IdentityEvent.
// Todo lo dinámico del provider muere acá: la reconciliación recibe un
// evento ya validado o nada.

type eventEnvelope struct {
	Type string        `json:"type"`
	Data eventSnapshot `json:"data"`
}

type eventSnapshot struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Username       string `json:"username"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	PublicMetadata struct {
		DOB         string `json:"dob"`
		PhoneNumber string `json:"phoneNumber"`
	} `json:"public_metadata"`
}

// ParseEvent valida el payload y lo convierte en un IdentityEvent.
// Tipos de evento desconocidos son error: el boundary no deja pasar nada
// fuera de la unión cerrada.
func ParseEvent(payload []byte) (*domain.IdentityEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("webhook payload: %w", err)
	}

	var kind domain.EventKind
	switch env.Type {
	case "user.created":
		kind = domain.EventCreated
	case "user.updated":
		kind = domain.EventUpdated
	case "user.deleted":
		kind = domain.EventDeleted
	default:
		return nil, fmt.Errorf("webhook payload: unknown event type %q", env.Type)
	}

	if env.Data.ID == "" {
		return nil, fmt.Errorf("webhook payload: missing data.id")
	}

	ev := &domain.IdentityEvent{
		Kind:       kind,
		ProviderID: env.Data.ID,
	}
	if kind == domain.EventDeleted {
		return ev, nil
	}

	// El snapshot puede venir sin email (el provider lo permite); el motor
	// de reconciliación sintetiza el username igual.
	if len(env.Data.EmailAddresses) > 0 {
		ev.Email = env.Data.EmailAddresses[0].EmailAddress
	}
	ev.FirstName = env.Data.FirstName
	ev.LastName = env.Data.LastName
	ev.Username = env.Data.Username
	ev.DateOfBirth = env.Data.PublicMetadata.DOB
	ev.PhoneNumber = env.Data.PublicMetadata.PhoneNumber
	return ev, nil
}
