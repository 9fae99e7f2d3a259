// Package directory define el acceso al directorio local de usuarios.
// El storage relacional es dueño exclusivo de los rows LocalUser; los
// servicios reciben el handle inyectado (nada de singletons de proceso).
package directory

import (
	"context"

	"github.com/dropDatabas3/idmirror/internal/domain"
)

// Directory es el contrato del Identity Directory.
//
// UpsertByProviderID y DeleteByProviderID son las primitivas atómicas que
// usa el motor de reconciliación; la atomicidad la provee el store (un solo
// statement), no locking de aplicación.
type Directory interface {
	// UpsertByProviderID inserta o actualiza el row cuyo conflict target es
	// provider_id, pisando los campos de perfil. Traduce las dos violaciones
	// de unique que se saben resolver: domain.ErrEmailTaken y
	// domain.ErrUsernameTaken. Cualquier otra violación se propaga cruda.
	// Rellena u.ID/CreatedAt/IsVerified con lo persistido y reporta si el
	// row fue creado.
	UpsertByProviderID(ctx context.Context, u *domain.User) (created bool, err error)

	// RebindByEmail re-liga el row existente con ese email al provider_id de
	// u, pisando los campos de perfil. domain.ErrNotFound si no hay row.
	RebindByEmail(ctx context.Context, email string, u *domain.User) error

	// DeleteByProviderID borra el row del provider_id. Que no exista no es
	// error (delete idempotente); deleted reporta si había algo que borrar.
	DeleteByProviderID(ctx context.Context, providerID string) (deleted bool, err error)

	// GetByEmail devuelve el row con ese email o domain.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmailOrUsername reporta si algún row ya usa ese email o username.
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)

	// MarkVerified setea is_verified=true en el row con ese email.
	// domain.ErrNotFound si el row todavía no se materializó.
	MarkVerified(ctx context.Context, email string) error

	// List devuelve todos los rows, más recientes primero.
	List(ctx context.Context) ([]domain.User, error)
}
