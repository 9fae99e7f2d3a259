// Package otp implementa el Ephemeral Token Store: códigos one-time con TTL.
// El directorio de usuarios nunca toca este storage; la coordinación pasa
// siempre por el servicio de verificación.
package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/idmirror/internal/domain"
)

// Store persiste tokens de verificación efímeros.
//
// Consume tiene que ser atómico: dos Verify concurrentes sobre el mismo
// token no pueden observar ambos un match. Cada backend resuelve la
// atomicidad con su primitiva (GETDEL en redis, mutex en memoria); acá no
// hay locking a nivel aplicación.
type Store interface {
	// Put guarda un token. No deduplica: varios tokens vivos para el mismo
	// (subject, purpose) son válidos por diseño.
	Put(ctx context.Context, tok domain.VerificationToken) error

	// Consume borra y devuelve el token que matchea (subject, purpose, code).
	// ok=false significa no-match (nada que borrar). Un token vencido igual
	// se devuelve (y queda borrado): distinguir Expired de InvalidCode es
	// decisión del caller.
	Consume(ctx context.Context, subject string, purpose domain.Purpose, code string) (*domain.VerificationToken, bool, error)
}

// key arma la clave única del token. El código es parte de la clave, así el
// lookup-by-match y el delete son la misma operación.
func key(prefix, subject string, purpose domain.Purpose, code string) string {
	return fmt.Sprintf("%sotp:%s:%s:%s", prefix, purpose, subject, code)
}

// physicalTTL es cuánto vive el registro en el backend. Se retiene más que
// el TTL lógico para que un match vencido se reporte como Expired y no como
// InvalidCode; pasado el doble del TTL ya no importa la distinción.
func physicalTTL(expiresAt, now time.Time) time.Duration {
	d := expiresAt.Sub(now) * 2
	if d <= 0 {
		d = time.Minute
	}
	return d
}
