// Package reconcile aplica eventos de lifecycle del identity provider sobre
// el directorio local, resolviendo conflictos de unique constraints.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/idmirror/internal/directory"
	"github.com/dropDatabas3/idmirror/internal/domain"
	"github.com/dropDatabas3/idmirror/internal/metrics"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
)

// Outcome describe cómo terminó la aplicación de un evento.
type Outcome string

const (
	// OutcomeCreated: el upsert insertó un row nuevo.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated: el upsert actualizó el row del provider_id.
	OutcomeUpdated Outcome = "updated"
	// OutcomeLinked: el email ya pertenecía a un row local pre-existente y
	// se re-ligó ese row al provider_id entrante.
	OutcomeLinked Outcome = "linked"
	// OutcomeSkipped: colisión de username; el evento no se aplicó.
	// Se reporta como conflicto no-fatal: renombrar en silencio sería peor.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDeleted: el row del provider_id fue borrado.
	OutcomeDeleted Outcome = "deleted"
	// OutcomeNoop: delete sin row que borrar (redelivery, o nunca existió).
	OutcomeNoop Outcome = "noop"
)

// ErrInvalidEvent se devuelve ante eventos fuera de la unión cerrada.
// El boundary ya valida; esto es la red de contención.
var ErrInvalidEvent = errors.New("reconcile: invalid event")

// Engine consume IdentityEvents y los vuelca al directorio.
//
// Cada operación es idempotente bajo redelivery del mismo evento; el orden
// entre eventos distintos de una misma identidad lo garantiza el delivery
// boundary, no el engine.
type Engine struct {
	dir directory.Directory
}

func New(dir directory.Directory) *Engine {
	return &Engine{dir: dir}
}

// Apply aplica un evento. Las colisiones de email se resuelven re-ligando el
// row local; las de username se reportan como OutcomeSkipped (logged, sin
// error). Cualquier otra falla del directorio se propaga sin consumir el
// evento, para que el delivery lo reintente.
func (e *Engine) Apply(ctx context.Context, ev domain.IdentityEvent) (Outcome, error) {
	if !ev.Kind.Valid() || ev.ProviderID == "" {
		return "", fmt.Errorf("%w: kind=%q provider_id=%q", ErrInvalidEvent, ev.Kind, ev.ProviderID)
	}

	log := logger.From(ctx).With(
		logger.Component("reconcile"),
		logger.EventKind(string(ev.Kind)),
		logger.ProviderID(ev.ProviderID),
	)

	var (
		out Outcome
		err error
	)
	switch ev.Kind {
	case domain.EventDeleted:
		out, err = e.applyDelete(ctx, ev, log)
	default:
		out, err = e.applyUpsert(ctx, ev, log)
	}
	if err != nil {
		return "", err
	}

	metrics.ReconcileEvents.WithLabelValues(string(ev.Kind), string(out)).Inc()
	log.Info("evento reconciliado", logger.Outcome(string(out)))
	return out, nil
}

func (e *Engine) applyDelete(ctx context.Context, ev domain.IdentityEvent, log *zap.Logger) (Outcome, error) {
	deleted, err := e.dir.DeleteByProviderID(ctx, ev.ProviderID)
	if err != nil {
		return "", fmt.Errorf("reconcile: delete provider_id=%s: %w", ev.ProviderID, err)
	}
	if !deleted {
		// Redelivery o identidad que nunca llegó a espejarse. No es error.
		log.Debug("delete sin row local")
		return OutcomeNoop, nil
	}
	return OutcomeDeleted, nil
}

func (e *Engine) applyUpsert(ctx context.Context, ev domain.IdentityEvent, log *zap.Logger) (Outcome, error) {
	u := userFromEvent(ev)

	created, err := e.dir.UpsertByProviderID(ctx, u)
	switch {
	case err == nil:
		if created {
			return OutcomeCreated, nil
		}
		return OutcomeUpdated, nil

	case errors.Is(err, domain.ErrEmailTaken):
		// Un row local (típicamente creado por signup directo antes de que
		// el provider asignara provider_id) ya posee ese email: en vez de
		// duplicar, se re-liga ese row a la identidad entrante.
		log.Warn("email ya registrado localmente, re-ligando row existente",
			logger.Email(u.Email))
		if rErr := e.dir.RebindByEmail(ctx, u.Email, u); rErr != nil {
			switch {
			case errors.Is(rErr, domain.ErrNotFound):
				// El dueño del email desapareció entre el upsert y el rebind.
				return "", fmt.Errorf("reconcile: rebind email: %w", domain.ErrUserNotFound)
			case errors.Is(rErr, domain.ErrUsernameTaken):
				// Misma política que en el upsert: un 5xx acá haría que el
				// provider reentregue para siempre un evento irresoluble.
				return e.skipUsernameConflict(u, log), nil
			}
			return "", fmt.Errorf("reconcile: rebind email: %w", rErr)
		}
		return OutcomeLinked, nil

	case errors.Is(err, domain.ErrUsernameTaken):
		return e.skipUsernameConflict(u, log), nil

	default:
		return "", fmt.Errorf("reconcile: upsert provider_id=%s: %w", ev.ProviderID, err)
	}
}

// skipUsernameConflict descarta el evento ante una colisión de username sin
// resolución automática sana, dejando rastro para intervención manual.
func (e *Engine) skipUsernameConflict(u *domain.User, log *zap.Logger) Outcome {
	log.Warn("username en conflicto, evento descartado",
		logger.Username(u.Username))
	return OutcomeSkipped
}

// userFromEvent materializa el candidato a persistir. El username nunca queda
// vacío: si el provider no manda uno se sintetiza del email, y en última
// instancia del tail del provider_id.
func userFromEvent(ev domain.IdentityEvent) *domain.User {
	pid := ev.ProviderID
	return &domain.User{
		ProviderID:  &pid,
		Email:       ev.Email,
		Username:    synthesizeUsername(ev),
		FirstName:   ev.FirstName,
		LastName:    ev.LastName,
		DateOfBirth: ev.DateOfBirth,
		PhoneNumber: ev.PhoneNumber,
	}
}

func synthesizeUsername(ev domain.IdentityEvent) string {
	if ev.Username != "" {
		return ev.Username
	}
	if ev.Email != "" {
		if at := strings.IndexByte(ev.Email, '@'); at > 0 {
			return strings.ToLower(ev.Email[:at])
		}
	}
	tail := ev.ProviderID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "user_" + strings.ToLower(tail)
}
