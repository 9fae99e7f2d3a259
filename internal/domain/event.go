package domain

// EventKind es el tipo cerrado de eventos de lifecycle que emite el provider.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Valid reporta si el kind pertenece al conjunto cerrado.
func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// IdentityEvent es el snapshot validado de un evento inbound del provider.
// Se construye en el boundary (webhook) después de verificar la firma; la
// lógica de reconciliación nunca ve payloads crudos.
type IdentityEvent struct {
	Kind       EventKind
	ProviderID string

	// Snapshot de perfil. Solo significativo para created/updated.
	Email       string
	FirstName   string
	LastName    string
	Username    string
	DateOfBirth string
	PhoneNumber string
}
