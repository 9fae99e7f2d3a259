package domain

import "time"

// User es el row local del directorio de identidades.
// El identity provider es la fuente de verdad; este row es el espejo local
// que mantiene el motor de reconciliación. ProviderID queda vacío hasta que
// llega el primer evento del provider.
type User struct {
	ID          string
	ProviderID  *string
	Email       string
	Username    string
	FirstName   string
	LastName    string
	DateOfBirth string // YYYY-MM-DD, tal como lo reporta el provider
	PhoneNumber string
	IsVerified  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Name devuelve "FirstName LastName" sin espacios sobrantes.
func (u *User) Name() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Projection es la vista que se expone a callers (signup/list).
type Projection struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Project arma la proyección pública del usuario.
func (u *User) Project() Projection {
	return Projection{ID: u.ID, Name: u.Name(), Email: u.Email}
}
