// Package webhook recibe las entregas de lifecycle del identity provider.
package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/dropDatabas3/idmirror/internal/http/dto"
	httperrors "github.com/dropDatabas3/idmirror/internal/http/errors"
	"github.com/dropDatabas3/idmirror/internal/http/helpers"
	"github.com/dropDatabas3/idmirror/internal/metrics"
	"github.com/dropDatabas3/idmirror/internal/observability/logger"
	"github.com/dropDatabas3/idmirror/internal/provider"
	"github.com/dropDatabas3/idmirror/internal/reconcile"
)

const maxPayloadBytes = 1 << 20

// Controller maneja POST /v1/webhooks/identity.
type Controller struct {
	verifier *provider.WebhookVerifier
	engine   *reconcile.Engine
}

func NewController(verifier *provider.WebhookVerifier, engine *reconcile.Engine) *Controller {
	return &Controller{verifier: verifier, engine: engine}
}

// header devuelve el primer header presente de la lista. El provider manda
// los headers con prefijo svix-; el formato portable usa webhook-.
func header(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := r.Header.Get(n); v != "" {
			return v
		}
	}
	return ""
}

// HandleIdentityEvent verifica la firma sobre el body CRUDO antes de
// deserializar nada: primero autenticidad, después parsing.
func (c *Controller) HandleIdentityEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(
		logger.Layer("controller"),
		logger.Op("webhook.HandleIdentityEvent"),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithCause(err))
		return
	}

	msgID := header(r, "svix-id", "webhook-id")
	timestamp := header(r, "svix-timestamp", "webhook-timestamp")
	signature := header(r, "svix-signature", "webhook-signature")

	if err := c.verifier.Verify(msgID, timestamp, signature, payload); err != nil {
		metrics.WebhookRejected.Inc()
		log.Warn("entrega rechazada", logger.Err(err))
		httperrors.WriteError(w, r, httperrors.ErrWebhookSignature.WithCause(err))
		return
	}

	ev, err := provider.ParseEvent(payload)
	if err != nil {
		metrics.WebhookRejected.Inc()
		log.Warn("payload inválido", logger.Err(err))
		httperrors.WriteError(w, r, httperrors.ErrWebhookPayload.WithCause(err))
		return
	}

	out, err := c.engine.Apply(r.Context(), *ev)
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidEvent) {
			httperrors.WriteError(w, r, httperrors.ErrWebhookPayload.WithCause(err))
			return
		}
		// 5xx: el provider reintenta la entrega más tarde.
		httperrors.WriteError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Success: true,
		Message: string(out),
	})
}
