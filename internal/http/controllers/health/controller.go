// Package health contiene los health checks del servicio.
package health

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/idmirror/internal/http/helpers"
)

// Pinger chequea la disponibilidad de una dependencia.
type Pinger interface {
	Ping(ctx context.Context) error
}

type component struct {
	name string
	ping Pinger
}

// Controller maneja /healthz y /readyz.
type Controller struct {
	components []component
}

func NewController() *Controller {
	return &Controller{}
}

// WithComponent registra una dependencia a chequear en Readyz.
func (c *Controller) WithComponent(name string, p Pinger) *Controller {
	if p != nil {
		c.components = append(c.components, component{name: name, ping: p})
	}
	return c
}

// Healthz maneja GET /healthz: el proceso está vivo.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz: las dependencias responden.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	out := map[string]string{"status": "ready"}

	for _, comp := range c.components {
		if err := comp.ping.Ping(r.Context()); err != nil {
			out[comp.name] = err.Error()
			out["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			out[comp.name] = "ok"
		}
	}
	helpers.WriteJSON(w, status, out)
}
